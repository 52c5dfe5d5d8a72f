package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dairyfarm/backend/internal/logger"
)

type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	SchemaPath         string
	CORSAllowedOrigins []string
	AppTimezone        string
	SettingsFile       string
	SMTP               SMTPConfig
	Log                logger.LogConfig
	Farm               FarmSettings
}

// SMTPConfig drives invoice reminder mail. Reminders are disabled unless
// host, username, password and sender address are all set.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	FromAddr string
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != "" && c.Username != "" && c.Password != "" && c.FromAddr != ""
}

// FarmSettings are the business defaults that operators tune per farm. They
// come from an optional YAML file and fall back to DefaultFarmSettings.
type FarmSettings struct {
	CompanyName    string            `yaml:"company_name"`
	CompanyAddress string            `yaml:"company_address"`
	Currency       string            `yaml:"currency"`
	CategoryColors map[string]string `yaml:"category_colors"`
	Payroll        PayrollSettings   `yaml:"payroll"`
	Jobs           JobSettings       `yaml:"jobs"`
}

type PayrollSettings struct {
	DefaultTaxWithholding float64 `yaml:"default_tax_withholding"`
	DefaultHoursWorked    float64 `yaml:"default_hours_worked"`
}

type JobSettings struct {
	OverdueSweepSpec string `yaml:"overdue_sweep_spec"`
	Disabled         bool   `yaml:"disabled"`
}

func DefaultFarmSettings() FarmSettings {
	return FarmSettings{
		CompanyName:    "Dairy Farm",
		CompanyAddress: "",
		Currency:       "INR",
		CategoryColors: map[string]string{
			"Feed":        "#4CAF50",
			"Labor":       "#2196F3",
			"Utilities":   "#FFC107",
			"Veterinary":  "#F44336",
			"Maintenance": "#9C27B0",
			"Milk Sales":  "#3F51B5",
			"Other":       "#9E9E9E",
		},
		Payroll: PayrollSettings{
			DefaultTaxWithholding: 15,
			DefaultHoursWorked:    80,
		},
		Jobs: JobSettings{
			OverdueSweepSpec: "15 0 * * *",
		},
	}
}

func Load() (Config, error) {
	cfg := Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SchemaPath:         getEnvOrDefault("DB_SCHEMA_PATH", "db/schema.sql"),
		CORSAllowedOrigins: splitCSVEnv(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		AppTimezone:        getEnvOrDefault("APP_TIMEZONE", "Asia/Kolkata"),
		SettingsFile:       strings.TrimSpace(os.Getenv("FARM_SETTINGS_FILE")),
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
			Port:     getEnvOrDefault("SMTP_PORT", "587"),
			Username: strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
			Password: normalizeSMTPPassword(os.Getenv("SMTP_PASSWORD")),
			FromName: getEnvOrDefault("FROM_NAME", "Dairy Farm Accounts"),
			FromAddr: strings.TrimSpace(os.Getenv("FROM_EMAIL")),
		},
		Log:                LoadLogConfig(),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing required environment variable: DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing required environment variable: JWT_SECRET")
	}

	farm, err := LoadFarmSettings(cfg.SettingsFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Farm = farm

	return cfg, nil
}

func LoadLogConfig() logger.LogConfig {
	def := logger.DefaultConfig()
	return logger.LogConfig{
		Level:      getEnvOrDefault("LOG_LEVEL", def.Level),
		Format:     getEnvOrDefault("LOG_FORMAT", def.Format),
		TimeFormat: getEnvOrDefault("LOG_TIME_FORMAT", def.TimeFormat),
		Output:     getEnvOrDefault("LOG_OUTPUT", def.Output),
	}
}

// LoadFarmSettings overlays the YAML file at path onto the defaults. An empty
// path yields the defaults unchanged.
func LoadFarmSettings(path string) (FarmSettings, error) {
	settings := DefaultFarmSettings()
	if strings.TrimSpace(path) == "" {
		return applyEnvOverrides(settings), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FarmSettings{}, fmt.Errorf("read settings file failed (%s): %w", path, err)
	}
	var overlay FarmSettings
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return FarmSettings{}, fmt.Errorf("parse settings file failed (%s): %w", path, err)
	}

	if v := strings.TrimSpace(overlay.CompanyName); v != "" {
		settings.CompanyName = v
	}
	if v := strings.TrimSpace(overlay.CompanyAddress); v != "" {
		settings.CompanyAddress = v
	}
	if v := strings.TrimSpace(overlay.Currency); v != "" {
		settings.Currency = strings.ToUpper(v)
	}
	for name, color := range overlay.CategoryColors {
		settings.CategoryColors[name] = color
	}
	if overlay.Payroll.DefaultTaxWithholding > 0 {
		settings.Payroll.DefaultTaxWithholding = overlay.Payroll.DefaultTaxWithholding
	}
	if overlay.Payroll.DefaultHoursWorked > 0 {
		settings.Payroll.DefaultHoursWorked = overlay.Payroll.DefaultHoursWorked
	}
	if v := strings.TrimSpace(overlay.Jobs.OverdueSweepSpec); v != "" {
		settings.Jobs.OverdueSweepSpec = v
	}
	settings.Jobs.Disabled = overlay.Jobs.Disabled

	if settings.Payroll.DefaultTaxWithholding > 100 {
		return FarmSettings{}, fmt.Errorf("payroll.default_tax_withholding must be at most 100, got %v", settings.Payroll.DefaultTaxWithholding)
	}
	return applyEnvOverrides(settings), nil
}

func applyEnvOverrides(settings FarmSettings) FarmSettings {
	if v := strings.TrimSpace(os.Getenv("COMPANY_NAME")); v != "" {
		settings.CompanyName = v
	}
	if v := getEnvAsFloat("DEFAULT_TAX_WITHHOLDING", 0); v > 0 && v <= 100 {
		settings.Payroll.DefaultTaxWithholding = v
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("DISABLE_JOBS")), "true") {
		settings.Jobs.Disabled = true
	}
	return settings
}

func getEnvOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvAsFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitCSVEnv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		item := strings.TrimSpace(p)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// normalizeSMTPPassword drops the spaces app passwords are often shown with.
func normalizeSMTPPassword(v string) string {
	return strings.ReplaceAll(strings.TrimSpace(v), " ", "")
}
