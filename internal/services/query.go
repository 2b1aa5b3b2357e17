package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"pharmstock/internal/analytics"
	"pharmstock/internal/dataprocessing"
	apierrors "pharmstock/internal/errors"
	"pharmstock/pkg/contracts/domain"
)

// Mode is the dashboard's time selection mode.
type Mode string

const (
	ModeDaily   Mode = "daily"
	ModeWeekly  Mode = "weekly"
	ModeMonthly Mode = "monthly"
	ModeRange   Mode = "range"
)

// DashboardQuery is a client's selection before defaults are applied.
// Dates use YYYY-MM-DD, months YYYY-MM. Empty fields take their defaults.
type DashboardQuery struct {
	Mode      string   `json:"mode" validate:"omitempty,oneof=daily weekly monthly range"`
	Date      string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Week      string   `json:"week" validate:"omitempty,datetime=2006-01-02"`
	Month     string   `json:"month" validate:"omitempty,datetime=2006-01"`
	Start     string   `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string   `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Wards     []string `json:"ward" validate:"dive,required"`
	Schedules []string `json:"schedule" validate:"dive,schedule"`
	TopN      int      `json:"top_n" validate:"omitempty,min=5,max=50"`
}

// Selection is a fully resolved query.
type Selection struct {
	Mode   Mode
	Filter analytics.FilterSpec
	Date   time.Time
	Week   domain.WeekKey
	Month  domain.MonthKey
	TopN   int
	Period string
}

const (
	dailyLabelLayout = "Monday 02 January 2006"
	shortDateLayout  = "02 Jan 2006"
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("schedule", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseDrugSchedule(fl.Field().String())
		return err == nil
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateQuery checks the struct tags of q and converts failures to a QueryError.
func validateQuery(v *validator.Validate, q DashboardQuery) error {
	err := v.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	qe := &QueryError{}
	for _, fe := range verrs {
		qe.Fields = append(qe.Fields, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return qe
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return fmt.Sprintf("must be a date in the form %s", fe.Param())
	case "min", "max":
		return fmt.Sprintf("must be between %d and %d", analytics.MinTopN, analytics.MaxTopN)
	case "schedule":
		return fmt.Sprintf("unknown drug schedule %q", fe.Value())
	case "required":
		return "must not be empty"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// resolve applies defaults from table to q. The table must not be empty.
func resolve(table *dataprocessing.Table, q DashboardQuery, defaults Defaults) (Selection, error) {
	sel := Selection{
		Mode: Mode(q.Mode),
		TopN: q.TopN,
	}
	if sel.Mode == "" {
		sel.Mode = defaults.Mode
	}
	if sel.TopN == 0 {
		sel.TopN = defaults.TopN
	}

	latest := table.MaxDate()
	switch sel.Mode {
	case ModeDaily:
		sel.Date = latest
		if q.Date != "" {
			d, err := time.Parse(time.DateOnly, q.Date)
			if err != nil {
				return Selection{}, invalidField("date", err.Error())
			}
			sel.Date = d
		}
		sel.Filter.Window = analytics.OnDate(sel.Date)
		sel.Period = sel.Date.Format(dailyLabelLayout)

	case ModeWeekly:
		sel.Week = domain.WeekOf(latest)
		if q.Week != "" {
			w, err := domain.ParseWeekKey(q.Week)
			if err != nil {
				return Selection{}, invalidField("week", err.Error())
			}
			sel.Week = w
		}
		sel.Filter.Window = analytics.InWeek(sel.Week)
		sel.Period = sel.Week.Label()

	case ModeMonthly:
		sel.Month = domain.MonthOf(latest)
		if q.Month != "" {
			m, err := domain.ParseMonthKey(q.Month)
			if err != nil {
				return Selection{}, invalidField("month", err.Error())
			}
			sel.Month = m
		}
		sel.Filter.Window = analytics.InMonth(sel.Month)
		sel.Period = sel.Month.Label()

	case ModeRange:
		start, end := table.MinDate(), latest
		var err error
		if q.Start != "" {
			if start, err = time.Parse(time.DateOnly, q.Start); err != nil {
				return Selection{}, invalidField("start", err.Error())
			}
		}
		if q.End != "" {
			if end, err = time.Parse(time.DateOnly, q.End); err != nil {
				return Selection{}, invalidField("end", err.Error())
			}
		}
		sel.Filter.Window = analytics.Between(start, end)
		sel.Period = fmt.Sprintf("%s – %s", start.Format(shortDateLayout), end.Format(shortDateLayout))

	default:
		return Selection{}, invalidField("mode", fmt.Sprintf("unsupported mode %q", sel.Mode))
	}

	if err := sel.Filter.Window.Validate(); err != nil {
		return Selection{}, invalidField(windowField(sel.Mode), err.Error())
	}

	sel.Filter.Destinations = append([]string(nil), q.Wards...)
	for _, s := range q.Schedules {
		sched, err := domain.ParseDrugSchedule(s)
		if err != nil {
			return Selection{}, invalidField("schedule", err.Error())
		}
		sel.Filter.Schedules = append(sel.Filter.Schedules, sched)
	}
	return sel, nil
}

func windowField(m Mode) string {
	switch m {
	case ModeDaily:
		return "date"
	case ModeWeekly:
		return "week"
	case ModeMonthly:
		return "month"
	default:
		return "start"
	}
}
