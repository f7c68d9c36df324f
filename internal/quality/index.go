package quality

import (
	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/stats"
)

// QualityIndex is a variable's three clamped scores and their weighted
// combination. Index is insufficient when consistency could not be computed;
// such a variable is left out of the overall index.
type QualityIndex struct {
	CompletenessScore float64                `json:"completeness_score"`
	ValidityScore     float64                `json:"validity_score"`
	ConsistencyScore  float64                `json:"consistency_score"`
	Index             domain.Result[float64] `json:"quality_index"`
}

// QualityIndex computes completeness*Wc + validity*Wv + consistency*Ws with
// every score clamped to [0, 100].
func (e *Engine) QualityIndex(variable string) (QualityIndex, error) {
	comp, err := e.Completeness(variable)
	if err != nil {
		return QualityIndex{}, err
	}
	valid, err := e.Validity(variable)
	if err != nil {
		return QualityIndex{}, err
	}
	cons, err := e.Consistency(variable)
	if err != nil {
		return QualityIndex{}, err
	}
	return e.combine(comp, valid, cons), nil
}

func (e *Engine) combine(comp Completeness, valid Validity, cons domain.Result[Consistency]) QualityIndex {
	qi := QualityIndex{
		CompletenessScore: clamp(comp.Percentage),
		ValidityScore:     clamp(valid.Percentage),
		ConsistencyScore:  clamp(cons.Value().Percentage),
	}
	if !cons.IsComputed() {
		qi.Index = domain.Insufficient[float64](cons.Required(), cons.Available())
		return qi
	}
	w := e.cfg.Weights
	qi.Index = domain.Computed(clamp(
		qi.CompletenessScore*w.Completeness +
			qi.ValidityScore*w.Validity +
			qi.ConsistencyScore*w.Consistency,
	))
	return qi
}

// Recommendation is the usage verdict for an index.
type Recommendation struct {
	Level       Level  `json:"level"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Level identifies one of the three recommendation tiers.
type Level string

const (
	LevelAdequate   Level = "adequate"
	LevelPartial    Level = "partially_adequate"
	LevelInadequate Level = "inadequate"
)

// Recommend maps an index onto the configured tiers: at or above AdequateMin
// is adequate, at or above PartialMin is partially adequate, anything lower
// is inadequate.
func (e *Engine) Recommend(index float64) Recommendation {
	return Recommend(index, e.cfg.Recommendation)
}

// Recommend applies a recommendation policy to an index.
func Recommend(index float64, policy config.Recommendation) Recommendation {
	switch {
	case index >= policy.AdequateMin:
		return recommendation(LevelAdequate, policy.Adequate)
	case index >= policy.PartialMin:
		return recommendation(LevelPartial, policy.Partial)
	default:
		return recommendation(LevelInadequate, policy.Inadequate)
	}
}

func recommendation(level Level, tier config.Tier) Recommendation {
	return Recommendation{Level: level, Label: tier.Label, Description: tier.Description}
}

// OverallQualityIndex averages the computed per-variable indices. Variables
// whose index is insufficient are listed in Excluded and do not contribute
// to any average. Recommendation is nil when Index is insufficient.
type OverallQualityIndex struct {
	Index               domain.Result[float64] `json:"overall_quality_index"`
	Recommendation      *Recommendation        `json:"recommendation"`
	VariableCount       int                    `json:"variable_count"`
	AverageCompleteness float64                `json:"average_completeness"`
	AverageValidity     float64                `json:"average_validity"`
	AverageConsistency  float64                `json:"average_consistency"`
	Excluded            []string               `json:"excluded_variables"`
}

// Overall computes the dataset-wide index over every variable in the table.
func (e *Engine) Overall() OverallQualityIndex {
	return e.overall(e.qualityIndices())
}

func (e *Engine) overall(indices map[string]QualityIndex) OverallQualityIndex {
	o := OverallQualityIndex{Excluded: []string{}}
	var sumIndex, sumComp, sumValid, sumCons float64
	for _, name := range e.table.Variables() {
		qi := indices[name]
		v, ok := qi.Index.Get()
		if !ok {
			o.Excluded = append(o.Excluded, name)
			continue
		}
		o.VariableCount++
		sumIndex += v
		sumComp += qi.CompletenessScore
		sumValid += qi.ValidityScore
		sumCons += qi.ConsistencyScore
	}

	if o.VariableCount == 0 {
		o.Index = domain.Insufficient[float64](1, 0)
		return o
	}
	n := float64(o.VariableCount)
	index := sumIndex / n
	rec := e.Recommend(index)
	o.Index = domain.Computed(index)
	o.Recommendation = &rec
	o.AverageCompleteness = sumComp / n
	o.AverageValidity = sumValid / n
	o.AverageConsistency = sumCons / n
	return o
}

func (e *Engine) qualityIndices() map[string]QualityIndex {
	out := make(map[string]QualityIndex, len(e.table.Variables()))
	for _, name := range e.table.Variables() {
		// Names come from the table, so lookups cannot fail.
		qi, _ := e.QualityIndex(name)
		out[name] = qi
	}
	return out
}

// Summary is the dataset-wide quality picture.
type Summary struct {
	Overall        OverallQualityIndex                   `json:"overall"`
	Completeness   map[string]Completeness               `json:"completeness"`
	Validity       map[string]Validity                   `json:"validity"`
	Consistency    map[string]domain.Result[Consistency] `json:"consistency"`
	QualityIndices map[string]QualityIndex               `json:"quality_indices"`
}

// Summary bundles every variable's scores with the overall index.
func (e *Engine) Summary() Summary {
	vars := e.table.Variables()
	s := Summary{
		Completeness:   make(map[string]Completeness, len(vars)),
		Validity:       make(map[string]Validity, len(vars)),
		Consistency:    make(map[string]domain.Result[Consistency], len(vars)),
		QualityIndices: make(map[string]QualityIndex, len(vars)),
	}
	for _, name := range vars {
		comp, _ := e.Completeness(name)
		valid, _ := e.Validity(name)
		cons, _ := e.Consistency(name)
		s.Completeness[name] = comp
		s.Validity[name] = valid
		s.Consistency[name] = cons
		s.QualityIndices[name] = e.combine(comp, valid, cons)
	}
	s.Overall = e.overall(s.QualityIndices)
	return s
}

// VariableReport is everything known about one variable's quality.
type VariableReport struct {
	Variable     string                           `json:"variable"`
	ShortName    string                           `json:"short_name"`
	Unit         string                           `json:"unit,omitempty"`
	Completeness Completeness                     `json:"completeness"`
	Validity     Validity                         `json:"validity"`
	Consistency  domain.Result[Consistency]       `json:"consistency"`
	Statistics   domain.Result[stats.Descriptive] `json:"statistics"`
	QualityIndex QualityIndex                     `json:"quality_index"`
}

// VariableReport bundles completeness, validity, consistency, descriptive
// statistics and the quality index for one variable.
func (e *Engine) VariableReport(variable string) (VariableReport, error) {
	comp, err := e.Completeness(variable)
	if err != nil {
		return VariableReport{}, err
	}
	valid, _ := e.Validity(variable)
	cons, _ := e.Consistency(variable)
	desc, _ := e.DescriptiveStatistics(variable)

	return VariableReport{
		Variable:     variable,
		ShortName:    e.cfg.ShortName(variable),
		Unit:         e.cfg.Units[variable],
		Completeness: comp,
		Validity:     valid,
		Consistency:  cons,
		Statistics:   desc,
		QualityIndex: e.combine(comp, valid, cons),
	}, nil
}
