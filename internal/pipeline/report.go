package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/quality"
	"github.com/couchcryptid/station-quality-service/internal/validator"
)

// Report is the complete result of analyzing one station file.
type Report struct {
	ID          string                             `json:"id"`
	GeneratedAt time.Time                          `json:"generated_at"`
	Source      string                             `json:"source"`
	ContentHash string                             `json:"content_hash"`
	Metadata    *domain.Metadata                   `json:"metadata"`
	Table       domain.TableSummary                `json:"table"`
	Validation  validator.Summary                  `json:"validation"`
	Anomalies   map[string]validator.AnomalyReport `json:"anomalies"`
	Quality     quality.Summary                    `json:"quality"`
	Variables   []quality.VariableReport           `json:"variables"`
}

// OverallIndex returns the dataset-wide quality index, if computed.
func (r *Report) OverallIndex() (float64, bool) {
	return r.Quality.Overall.Index.Get()
}

// ContentHash identifies file content independently of its name.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
