package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Range is an inclusive physical plausibility interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the inclusive range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Weights are the quality-index coefficients. They must sum to 1.
type Weights struct {
	Completeness float64 `yaml:"completeness" envconfig:"COMPLETENESS" validate:"gte=0,lte=1"`
	Validity     float64 `yaml:"validity" envconfig:"VALIDITY" validate:"gte=0,lte=1"`
	Consistency  float64 `yaml:"consistency" envconfig:"CONSISTENCY" validate:"gte=0,lte=1"`
}

// Tier is one recommendation band.
type Tier struct {
	Label       string `yaml:"label" envconfig:"LABEL" validate:"required"`
	Description string `yaml:"description" envconfig:"DESCRIPTION" validate:"required"`
}

// Recommendation holds the three-tier usage policy. An index at or above
// AdequateMin is adequate; at or above PartialMin is partially adequate;
// anything lower is inadequate.
type Recommendation struct {
	AdequateMin float64 `yaml:"adequate_min" envconfig:"ADEQUATE_MIN" validate:"gte=0,lte=100"`
	PartialMin  float64 `yaml:"partial_min" envconfig:"PARTIAL_MIN" validate:"gte=0,lte=100"`
	Adequate    Tier    `yaml:"adequate" envconfig:"ADEQUATE"`
	Partial     Tier    `yaml:"partial" envconfig:"PARTIAL"`
	Inadequate  Tier    `yaml:"inadequate" envconfig:"INADEQUATE"`
}

// Analysis is the rule set for one analysis run. It is built once at startup
// and treated as immutable afterwards.
type Analysis struct {
	MaxFileSizeBytes int64    `yaml:"max_file_size_bytes" envconfig:"MAX_FILE_SIZE_BYTES" validate:"gt=0"`
	Delimiter        string   `yaml:"delimiter" envconfig:"DELIMITER" validate:"len=1"`
	DecimalSeparator string   `yaml:"decimal_separator" envconfig:"DECIMAL_SEPARATOR" validate:"len=1,nefield=Delimiter"`
	NullTokens       []string `yaml:"null_tokens" ignored:"true"`
	MetadataLines    int      `yaml:"metadata_lines" envconfig:"METADATA_LINES" validate:"gte=0"`
	HeaderLine       int      `yaml:"header_line" envconfig:"HEADER_LINE" validate:"gte=0"`
	HeaderMarker     string   `yaml:"header_marker" envconfig:"HEADER_MARKER" validate:"required"`
	DateLayout       string   `yaml:"date_layout" envconfig:"DATE_LAYOUT" validate:"required"`

	PhysicalLimits map[string]Range  `yaml:"physical_limits" ignored:"true"`
	ShortNames     map[string]string `yaml:"short_names" ignored:"true"`
	Units          map[string]string `yaml:"units" ignored:"true"`

	Weights        Weights        `yaml:"weights" envconfig:"WEIGHTS"`
	Recommendation Recommendation `yaml:"recommendation" envconfig:"RECOMMENDATION"`

	IQRMultiplier         float64 `yaml:"iqr_multiplier" envconfig:"IQR_MULTIPLIER" validate:"gt=0"`
	ZScoreThreshold       float64 `yaml:"zscore_threshold" envconfig:"ZSCORE_THRESHOLD" validate:"gt=0"`
	ConsistencyZThreshold float64 `yaml:"consistency_z_threshold" envconfig:"CONSISTENCY_Z_THRESHOLD" validate:"gt=0"`
	ChangePointWindow     int     `yaml:"change_point_window" envconfig:"CHANGE_POINT_WINDOW" validate:"gte=2"`
	ChangePointSigma      float64 `yaml:"change_point_sigma" envconfig:"CHANGE_POINT_SIGMA" validate:"gt=0"`
}

// Variable names used by INMET daily exports.
const (
	VarPrecipitation = "PRECIPITACAO TOTAL, DIARIO (AUT)(mm)"
	VarPressure      = "PRESSAO ATMOSFERICA MEDIA DIARIA (AUT)(mB)"
	VarDewPoint      = "TEMPERATURA DO PONTO DE ORVALHO MEDIA DIARIA (AUT)(°C)"
	VarTempMax       = "TEMPERATURA MAXIMA, DIARIA (AUT)(°C)"
	VarTempMean      = "TEMPERATURA MEDIA, DIARIA (AUT)(°C)"
	VarTempMin       = "TEMPERATURA MINIMA, DIARIA (AUT)(°C)"
	VarHumidityMean  = "UMIDADE RELATIVA DO AR, MEDIA DIARIA (AUT)(%)"
	VarHumidityMin   = "UMIDADE RELATIVA DO AR, MINIMA DIARIA (AUT)(%)"
	VarWindGust      = "VENTO, RAJADA MAXIMA DIARIA (AUT)(m/s)"
	VarWindSpeedMean = "VENTO, VELOCIDADE MEDIA DIARIA (AUT)(m/s)"
)

const defaultMaxFileSize = 200 * 1024 * 1024

// DefaultAnalysis returns the rule set for INMET daily station exports.
func DefaultAnalysis() Analysis {
	return Analysis{
		MaxFileSizeBytes: defaultMaxFileSize,
		Delimiter:        ";",
		DecimalSeparator: ",",
		NullTokens:       []string{"null", "NULL", "None", "nan", "NaN", ""},
		MetadataLines:    9,
		HeaderLine:       10,
		HeaderMarker:     "Data Medicao",
		DateLayout:       "2006-01-02",
		PhysicalLimits: map[string]Range{
			VarPrecipitation: {Min: 0, Max: 500},
			VarPressure:      {Min: 900, Max: 1050},
			VarDewPoint:      {Min: -50, Max: 50},
			VarTempMax:       {Min: -50, Max: 60},
			VarTempMean:      {Min: -50, Max: 60},
			VarTempMin:       {Min: -50, Max: 60},
			VarHumidityMean:  {Min: 0, Max: 100},
			VarHumidityMin:   {Min: 0, Max: 100},
			VarWindGust:      {Min: 0, Max: 100},
			VarWindSpeedMean: {Min: 0, Max: 50},
		},
		ShortNames: map[string]string{
			VarPrecipitation: "Precipitation (mm)",
			VarPressure:      "Pressure (mB)",
			VarDewPoint:      "Dew Point (°C)",
			VarTempMax:       "Max Temperature (°C)",
			VarTempMean:      "Mean Temperature (°C)",
			VarTempMin:       "Min Temperature (°C)",
			VarHumidityMean:  "Mean Humidity (%)",
			VarHumidityMin:   "Min Humidity (%)",
			VarWindGust:      "Max Gust (m/s)",
			VarWindSpeedMean: "Mean Wind Speed (m/s)",
		},
		Units: map[string]string{
			VarPrecipitation: "mm",
			VarPressure:      "mB",
			VarDewPoint:      "°C",
			VarTempMax:       "°C",
			VarTempMean:      "°C",
			VarTempMin:       "°C",
			VarHumidityMean:  "%",
			VarHumidityMin:   "%",
			VarWindGust:      "m/s",
			VarWindSpeedMean: "m/s",
		},
		Weights: Weights{Completeness: 0.4, Validity: 0.4, Consistency: 0.2},
		Recommendation: Recommendation{
			AdequateMin: 80,
			PartialMin:  60,
			Adequate:    Tier{Label: "Adequate", Description: "Data quality is adequate for scientific use."},
			Partial:     Tier{Label: "Partially Adequate", Description: "Data quality is moderate; review before use is recommended."},
			Inadequate:  Tier{Label: "Inadequate", Description: "Data quality is insufficient for scientific use."},
		},
		IQRMultiplier:         1.5,
		ZScoreThreshold:       3.0,
		ConsistencyZThreshold: 3.0,
		ChangePointWindow:     30,
		ChangePointSigma:      2.0,
	}
}

// LoadAnalysis builds the rule set: defaults, then the YAML rules file at
// path (if non-empty), then QUALITY_* environment overrides. Map entries in
// the file are merged over the defaults. The result is validated.
func LoadAnalysis(path string) (Analysis, error) {
	a := DefaultAnalysis()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Analysis{}, fmt.Errorf("read rules file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &a); err != nil {
			return Analysis{}, fmt.Errorf("parse rules file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("QUALITY", &a); err != nil {
		return Analysis{}, fmt.Errorf("load QUALITY_* overrides: %w", err)
	}

	if err := a.Validate(); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// weightTolerance bounds floating-point error when checking the weight sum.
const weightTolerance = 1e-9

// Validate checks field constraints, that the weights sum to 1, that every
// physical range is ordered, and that the recommendation thresholds are ordered.
func (a Analysis) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid analysis rules: %w", err)
	}
	if err := a.validateDelimiter(); err != nil {
		return err
	}
	sum := a.Weights.Completeness + a.Weights.Validity + a.Weights.Consistency
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("invalid analysis rules: weights sum to %g, want 1", sum)
	}
	for name, r := range a.PhysicalLimits {
		if r.Min > r.Max {
			return fmt.Errorf("invalid analysis rules: physical limit for %q has min %g above max %g", name, r.Min, r.Max)
		}
	}
	if a.Recommendation.PartialMin > a.Recommendation.AdequateMin {
		return errors.New("invalid analysis rules: recommendation partial_min exceeds adequate_min")
	}
	return nil
}

// validateDelimiter rejects separators the delimited-record reader cannot
// split on.
func (a Analysis) validateDelimiter() error {
	delim, _ := utf8.DecodeRuneInString(a.Delimiter)
	decimal, _ := utf8.DecodeRuneInString(a.DecimalSeparator)
	switch {
	case delim == utf8.RuneError, delim == '"', delim == '\r', delim == '\n':
		return fmt.Errorf("invalid analysis rules: delimiter %q cannot separate fields", a.Delimiter)
	case delim == decimal:
		return fmt.Errorf("invalid analysis rules: delimiter %q equals the decimal separator", a.Delimiter)
	}
	return nil
}

// Limit returns the physical range configured for a variable.
func (a Analysis) Limit(variable string) (Range, bool) {
	r, ok := a.PhysicalLimits[variable]
	return r, ok
}

// IsNullToken reports whether a trimmed field denotes a missing value.
func (a Analysis) IsNullToken(field string) bool {
	for _, tok := range a.NullTokens {
		if field == tok {
			return true
		}
	}
	return false
}

// ShortName returns the display name for a variable, defaulting to the variable itself.
func (a Analysis) ShortName(variable string) string {
	if s, ok := a.ShortNames[variable]; ok {
		return s
	}
	return variable
}
