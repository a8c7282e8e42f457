package storage

import (
	"caseforge/internal/axes"
	"caseforge/internal/prompt"
	"caseforge/internal/quota"
	"caseforge/internal/review"
)

// ResponseFormat tells the agent what shape its submission must take.
type ResponseFormat struct {
	RootType                  string   `json:"root_type"`
	RequiredKeys              []string `json:"required_keys"`
	CaseTextRule              string   `json:"case_text_rule"`
	AdditionalRootKeysAllowed bool     `json:"additional_root_keys_allowed"`
}

// SubmissionContract names the fields the submit endpoint expects.
type SubmissionContract struct {
	RequiredFields []string `json:"required_fields"`
	Note           string   `json:"note"`
}

// DefaultResponseFormat is the contract attached to every instruction.
func DefaultResponseFormat() ResponseFormat {
	return ResponseFormat{
		RootType:     "object",
		RequiredKeys: []string{"case_text"},
		CaseTextRule: "Chaîne libre en français contenant l'énoncé complet.",
	}
}

// DefaultSubmissionContract is the submit contract attached to every
// instruction. The target stays server-side; the agent only writes the
// statement.
func DefaultSubmissionContract() SubmissionContract {
	return SubmissionContract{
		RequiredFields: []string{"instruction_id", "case_text"},
		Note: "Le serveur fournit target_toon dans l'instruction. " +
			"Soumettre uniquement l'énoncé (case_text).",
	}
}

// InstructionRecord is one issued instruction as journaled and persisted.
type InstructionRecord struct {
	InstructionID      string                      `json:"instruction_id"`
	AgentID            string                      `json:"agent_id"`
	IssuedAt           string                      `json:"issued_at"`
	Signature          string                      `json:"signature"`
	Dimensions         axes.Profile                `json:"dimensions"`
	DimensionGuide     map[string]prompt.AxisGuide `json:"dimension_guide"`
	StyleBrief         string                      `json:"style_brief"`
	MustInclude        []string                    `json:"must_include"`
	MustAvoid          []string                    `json:"must_avoid"`
	ResponseFormat     ResponseFormat              `json:"response_format"`
	SubmissionContract SubmissionContract          `json:"submission_contract"`
	ReferenceExamples  []prompt.ReferenceExample   `json:"reference_examples"`
	Prompt             string                      `json:"prompt"`
	ServerTargetTOON   string                      `json:"server_target_toon"`
}

// SubmissionRecord is one accepted submission as journaled and persisted.
type SubmissionRecord struct {
	InstructionID string        `json:"instruction_id"`
	AgentID       string        `json:"agent_id"`
	SubmittedAt   string        `json:"submitted_at"`
	CaseText      string        `json:"case_text"`
	TargetTOON    string        `json:"target_toon"`
	TargetSource  string        `json:"target_source"`
	Validation    review.Report `json:"validation"`
	Dimensions    axes.Profile  `json:"dimensions"`
}

// TargetSourceServer marks submissions whose target was locked by the
// coordinator at issuance.
const TargetSourceServer = "server_instruction"

// Counters is the quick-glance progress file. Dimensions holds the raw
// per-axis bucket tallies; the journals stay authoritative.
type Counters struct {
	Issued           int                       `json:"issued"`
	Submitted        int                       `json:"submitted"`
	GenerationTarget int                       `json:"generation_target"`
	Dimensions       map[string]map[string]int `json:"dimensions"`
	UpdatedAt        string                    `json:"updated_at"`
}

// Snapshot is the coverage dashboard, persisted as summary.json and
// rendered as summary.md.
type Snapshot struct {
	TargetTotalCases     int                           `json:"target_total_cases"`
	GenerationTarget     int                           `json:"generation_target"`
	SeedCases            int                           `json:"seed_cases"`
	Issued               int                           `json:"issued"`
	Submitted            int                           `json:"submitted"`
	TrainingCasesCurrent int                           `json:"training_cases_current"`
	Remaining            int                           `json:"remaining"`
	Dimensions           map[string]quota.AxisProgress `json:"dimensions"`
}

// RunConfig identifies a campaign run; written once and reused across
// restarts.
type RunConfig struct {
	RunID            string `json:"run_id"`
	CreatedAt        string `json:"created_at"`
	TargetTotalCases int    `json:"target_total_cases"`
	GenerationTarget int    `json:"generation_target"`
	SeedCases        int    `json:"seed_cases"`
}
