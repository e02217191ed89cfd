// Package portal builds the meter-reading submission flow for the housing
// services portal (dom.gosuslugi.ru).
package portal

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/xkilldash9x/meterpost/internal/config"
	"github.com/xkilldash9x/meterpost/internal/flow"
)

// Recorded window size of the original session.
const (
	ViewportWidth  = 1366
	ViewportHeight = 786
)

const (
	formTable  = `form[name="form.spug1Form"] table`
	valueInput = "input.form-control[size]"
	dateInput  = "input.form-control.datePickerStringInput"
	redacted   = "********"
)

// ErrInvalidReadings is returned by Validate.
var ErrInvalidReadings = errors.New("portal: invalid readings")

var meterValue = regexp.MustCompile(`^\d+([.,]\d+)?$`)

// Readings is everything one submission needs.
type Readings struct {
	Login          string
	Password       string
	ColdWaterID    string
	ColdWaterValue string
	HotWaterID     string
	HotWaterValue  string
	// Date is already formatted the way the portal's date field expects.
	Date string
}

// NewReadings takes the account and meters from cfg and stamps them with the
// current date in cfg.DateFormat.
func NewReadings(cfg config.PortalConfig, now func() time.Time) Readings {
	if now == nil {
		now = time.Now
	}
	layout := cfg.DateFormat
	if layout == "" {
		layout = config.DefaultDateFormat
	}
	return Readings{
		Login:          cfg.Login,
		Password:       cfg.Password,
		ColdWaterID:    cfg.ColdWater.ID,
		ColdWaterValue: cfg.ColdWater.Value,
		HotWaterID:     cfg.HotWater.ID,
		HotWaterValue:  cfg.HotWater.Value,
		Date:           now().Format(layout),
	}
}

// Validate requires every field and decimal meter values.
func (r Readings) Validate() error {
	fields := []struct{ name, value string }{
		{"login", r.Login},
		{"password", r.Password},
		{"cold water id", r.ColdWaterID},
		{"cold water", r.ColdWaterValue},
		{"hot water id", r.HotWaterID},
		{"hot water", r.HotWaterValue},
		{"submission date", r.Date},
	}
	var errs []error
	for _, f := range fields {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%w: %s is empty", ErrInvalidReadings, f.name))
		}
	}
	for _, f := range []struct{ name, value string }{{"cold water", r.ColdWaterValue}, {"hot water", r.HotWaterValue}} {
		if f.value != "" && !meterValue.MatchString(f.value) {
			errs = append(errs, fmt.Errorf("%w: %s value %q is not a number", ErrInvalidReadings, f.name, f.value))
		}
	}
	return errors.Join(errs...)
}

// Redacted hides the password, for printing.
func (r Readings) Redacted() Readings {
	if r.Password != "" {
		r.Password = redacted
	}
	return r
}

// BuildFlow reproduces the recorded submission: sign in, open the meter
// readings form, fill both rows and confirm.
func BuildFlow(r Readings, url string, stepTimeout time.Duration) *flow.Flow {
	base := int(stepTimeout / time.Millisecond)
	navigation := []flow.AssertedEvent{{Type: "navigation"}}

	steps := []flow.Step{
		{Type: flow.StepSetViewport, Width: ViewportWidth, Height: ViewportHeight, DeviceScaleFactor: 1},
		{Type: flow.StepNavigate, URL: url, AssertedEvents: []flow.AssertedEvent{{Type: "navigation", URL: url}}},
		{
			Type: flow.StepClick,
			Selectors: [][]string{
				{"aria/Войти"},
				{"body > div.page-wrapper.page-wrapper_v2 > div.portal-header.target-audience.target-audience_pad > div.container > div > div > div.col-xs-6.portal-header__right-part-wrapper > signed-status-badge > div > a"},
			},
			OffsetX:        99.40625,
			OffsetY:        15,
			AssertedEvents: navigation,
		},
		{
			Type:      flow.StepClick,
			Selectors: [][]string{{"aria/Телефон / Email / СНИЛС"}, {"#login"}},
			OffsetX:   100.5,
			OffsetY:   14,
		},
		{
			Type:      flow.StepChange,
			Selectors: [][]string{{"aria/Телефон / Email / СНИЛС"}, {"#login"}},
			Value:     r.Login,
		},
		{
			Type:      flow.StepChange,
			Selectors: [][]string{{"aria/Пароль"}, {"#password"}},
			Value:     r.Password,
		},
		{
			Type: flow.StepClick,
			Selectors: [][]string{
				{"aria/Войти"},
				{"body > esia-root > div > esia-idp > div > div.form-container.mb-20.mb-md-40 > form > div.mb-24 > button"},
			},
			OffsetX:        138.5,
			OffsetY:        22,
			AssertedEvents: navigation,
		},
		// Account type choice shown after sign-in.
		{
			Type:           flow.StepClick,
			Selectors:      [][]string{{"#loginForm > div > div:nth-child(2) > div.right-block > label > p"}},
			OffsetX:        38.3125,
			OffsetY:        6,
			AssertedEvents: navigation,
		},
		{
			Type: flow.StepClick,
			Selectors: [][]string{
				{"body > div.page-wrapper > div.app-content-wrapper > div > div > ef-ppa-lk-grzh > div > div > div > div > div.row > div.col-xs-8 > ef-ppa-lk-grzh-tiles > div:nth-child(1) > div.row > div:nth-child(3) > div > a > div.citizen-cabinet__tile-button-label.ng-scope > div > span:nth-child(1)"},
			},
			OffsetX: 66.671875,
			OffsetY: 28.5,
			Timeout: base * 5,
		},
		{
			Type: flow.StepClick,
			Selectors: [][]string{
				{"aria/Закрыть"},
				{"body > div.modal.fade.ng-isolate-scope.z-index-xxl.in > div > div > div > div.modal-footer.modal-base__footer.text-center > button > span"},
			},
			Timeout: base * 10,
		},
		meterRow(r.ColdWaterID, r.ColdWaterValue, r.Date),
		meterRow(r.HotWaterID, r.HotWaterValue, r.Date),
		{
			Type: flow.StepClick,
			Selectors: [][]string{
				{"aria/Сохранить"},
				{"body > div.modal.fade.ng-isolate-scope.in > div > div > div > div.modal-footer.modal-base__footer > a.btn.btn-action"},
			},
			OffsetX: 45.5,
			OffsetY: 10.15625,
		},
		{
			Type: flow.StepClick,
			Selectors: [][]string{
				{"aria/ОК"},
				{"body > div.modal.fade.ng-isolate-scope.z-index-xxl.in > div > div > div > div.modal-footer.modal-base__footer.text-center > button > span"},
			},
			OffsetX: 14.34375,
			OffsetY: 13.40625,
		},
		{Type: flow.StepClose},
	}

	return &flow.Flow{
		Title:   "Передача показаний счётчиков воды",
		Timeout: base,
		Steps:   steps,
	}
}

func meterRow(id, value, date string) flow.Step {
	return flow.Step{
		Type:      flow.StepFillRow,
		Selectors: [][]string{{formTable}},
		Row:       id,
		Fields: []flow.Field{
			{Selector: []string{valueInput}, Value: value},
			{Selector: []string{dateInput}, Value: date},
		},
	}
}
