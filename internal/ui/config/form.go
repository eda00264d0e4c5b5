package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/change-adapter/internal/credential"
	"github.com/nhle/change-adapter/internal/model"
)

// Fields holds the values edited by the instance form.
type Fields struct {
	ID          string
	Name        string
	URL         string
	Username    string
	Password    string
	Table       string
	Interval    string
	MissingBody string
	Enabled     bool
}

// FieldsFrom pre-fills the form from an existing instance. The password
// is never pre-filled; leaving it empty keeps the stored one.
func FieldsFrom(inst model.AdapterConfig) Fields {
	f := Fields{
		ID:          inst.ID,
		Name:        inst.Name,
		URL:         inst.URL,
		Username:    inst.Auth.Username,
		Table:       inst.Table,
		MissingBody: inst.MissingBody,
		Enabled:     inst.Enabled,
	}
	if inst.HealthIntervalSec > 0 {
		f.Interval = strconv.Itoa(inst.HealthIntervalSec)
	}
	return f
}

// NewFields returns the defaults for a new instance.
func NewFields() Fields {
	return Fields{
		Table:       model.DefaultTable,
		Interval:    "60",
		MissingBody: model.MissingBodyDrop,
		Enabled:     true,
	}
}

// NewForm builds the huh form editing f in place.
func NewForm(f *Fields, width int) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Instance ID").
				Description("Tags every event and log line of this instance").
				Placeholder("snow-prod").
				Value(&f.ID).
				Validate(validateRequired("Instance ID")),
			huh.NewInput().
				Title("Name").
				Description("Optional label").
				Placeholder("Production ServiceNow").
				Value(&f.Name),
			huh.NewInput().
				Title("URL").
				Description("ServiceNow instance root (e.g., https://acme.service-now.com)").
				Placeholder("https://acme.service-now.com").
				Value(&f.URL).
				Validate(validateURL),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&f.Username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Stored in the system keyring; leave empty to keep the current one").
				EchoMode(huh.EchoModePassword).
				Value(&f.Password),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Table").
				Value(&f.Table).
				Validate(validateRequired("Table")),
			huh.NewInput().
				Title("Health interval (seconds)").
				Value(&f.Interval).
				Validate(validateInterval),
			huh.NewSelect[string]().
				Title("Response without body").
				Options(
					huh.NewOption("Drop silently", model.MissingBodyDrop),
					huh.NewOption("Report as error", model.MissingBodyError),
				).
				Value(&f.MissingBody),
			huh.NewConfirm().
				Title("Enable periodic health checks?").
				Value(&f.Enabled),
		),
	).WithWidth(width)
}

// AdapterConfig converts the form values to an instance configuration.
// The password is not included; it belongs in the keyring.
func (f Fields) AdapterConfig() (model.AdapterConfig, error) {
	interval := 0
	if s := strings.TrimSpace(f.Interval); s != "" {
		if err := validateInterval(s); err != nil {
			return model.AdapterConfig{}, err
		}
		interval, _ = strconv.Atoi(s)
	}

	inst := model.AdapterConfig{
		ID:                strings.TrimSpace(f.ID),
		Name:              strings.TrimSpace(f.Name),
		URL:               strings.TrimRight(strings.TrimSpace(f.URL), "/"),
		Auth:              model.AuthConfig{Username: strings.TrimSpace(f.Username)},
		Table:             strings.TrimSpace(f.Table),
		Enabled:           f.Enabled,
		HealthIntervalSec: interval,
		MissingBody:       f.MissingBody,
	}
	if err := inst.Validate(); err != nil {
		return model.AdapterConfig{}, err
	}
	return inst, nil
}

// Apply inserts inst into cfg, replacing an instance with the same ID.
func Apply(cfg *model.AppConfig, inst model.AdapterConfig) {
	for i := range cfg.Instances {
		if cfg.Instances[i].ID == inst.ID {
			cfg.Instances[i] = inst
			return
		}
	}
	cfg.Instances = append(cfg.Instances, inst)
}

// Save applies the form to cfg, stores a non-empty password in the
// keyring, and writes the configuration file.
func Save(path string, cfg *model.AppConfig, f Fields) (model.AdapterConfig, error) {
	inst, err := f.AdapterConfig()
	if err != nil {
		return model.AdapterConfig{}, err
	}

	if f.Password != "" {
		if err := credential.Set(credential.PasswordKey(inst.ID), f.Password); err != nil {
			return model.AdapterConfig{}, fmt.Errorf("storing password for %s: %w", inst.ID, err)
		}
	}

	Apply(cfg, inst)
	if err := model.SaveConfig(path, cfg); err != nil {
		return model.AdapterConfig{}, err
	}
	return inst, nil
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validateInterval(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("interval must be a positive number of seconds")
	}
	return nil
}
