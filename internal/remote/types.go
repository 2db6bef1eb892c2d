package remote

import "github.com/mattjoyce/ctlstudio/internal/document"

// CycleMode selects how the controller executes a cycle.
type CycleMode string

const (
	ModeLive CycleMode = "live"
	ModeDry  CycleMode = "dry"
)

// CommitPolicy lists the artifact kinds a workspace requires on commit.
type CommitPolicy struct {
	Required []string `json:"required"`
	Optional []string `json:"optional"`
}

// Workspace describes a mounted controller workspace.
type Workspace struct {
	ID           string            `json:"workspace_id"`
	Name         string            `json:"name"`
	Root         string            `json:"root"`
	Languages    []string          `json:"languages"`
	Directories  map[string]string `json:"directories"`
	CommitPolicy CommitPolicy      `json:"commit_policy"`
}

// ArtifactEntry is a registry entry. Bundles are entries of type agent_bundle.
type ArtifactEntry struct {
	ArtifactID   string            `json:"artifact_id"`
	ArtifactType string            `json:"artifact_type"`
	BodyHash     string            `json:"body_hash"`
	Path         string            `json:"path"`
	Meta         document.Document `json:"meta"`
	Version      string            `json:"version"`
	CreatedAt    string            `json:"created_at"`
	Status       string            `json:"status"`
	IntentID     *string           `json:"intent_id"`
}

// Bundle is an accepted agent bundle.
type Bundle = ArtifactEntry

// ArtifactDocument is the envelope and body of one stored artifact.
type ArtifactDocument struct {
	Envelope document.Document `json:"envelope"`
	Body     document.Document `json:"body"`
}

// ArtifactDetail pairs a registry entry with its document.
type ArtifactDetail struct {
	Entry    ArtifactEntry    `json:"entry"`
	Document ArtifactDocument `json:"document"`
}

// ArtifactPayload is the body of an artifact create or update request.
type ArtifactPayload struct {
	ArtifactType string            `json:"artifact_type"`
	Body         document.Document `json:"body"`
}

// CycleRequest asks the controller to run a bundle.
type CycleRequest struct {
	BundleArtifactID string    `json:"bundle_artifact_id"`
	Mode             CycleMode `json:"mode"`
	DryRun           bool      `json:"dry_run"`
	RunID            string    `json:"run_id,omitempty"`
	WorkspaceID      string    `json:"workspace_id,omitempty"`
	ApprovalToken    string    `json:"approval_token,omitempty"`
	LLMConfigID      string    `json:"llm_config_id,omitempty"`
}

// CycleRun is the controller's answer to a cycle request.
type CycleRun struct {
	RunID       string            `json:"run_id"`
	ReportPath  string            `json:"report_path"`
	Success     bool              `json:"success"`
	Errors      []string          `json:"errors"`
	GapMap      *string           `json:"gap_map"`
	Backlog     *string           `json:"backlog"`
	Report      document.Document `json:"report"`
	WorkspaceID *string           `json:"workspace_id"`
	LLMConfigID *string           `json:"llm_config_id"`
	LLMConfig   document.Document `json:"llm_config"`
}

// ReportSummary is one entry of the run history.
type ReportSummary struct {
	RunID      string            `json:"run_id"`
	Report     document.Document `json:"report"`
	ReportPath string            `json:"report_path"`
	GapMap     *string           `json:"gap_map"`
	Backlog    *string           `json:"backlog"`
}

// DiffItem is one structural difference between two artifact documents.
type DiffItem struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Base    any    `json:"base"`
	Compare any    `json:"compare"`
}

// DiffResult compares two artifacts.
type DiffResult struct {
	BaseID    string     `json:"base_id"`
	CompareID string     `json:"compare_id"`
	Diff      []DiffItem `json:"diff"`
}

// RunStatus is the controller's live view of one run.
type RunStatus struct {
	RunID            string   `json:"run_id"`
	WorkspaceID      *string  `json:"workspace_id"`
	BundleArtifactID *string  `json:"bundle_artifact_id"`
	Status           string   `json:"status"`
	CurrentStep      *string  `json:"current_step"`
	Attempt          int      `json:"attempt"`
	RetryCount       int      `json:"retry_count"`
	TimeoutStep      *string  `json:"timeout_step"`
	TimeoutSeconds   *float64 `json:"timeout_seconds"`
	TimeoutReason    *string  `json:"timeout_reason"`
	Canceled         bool     `json:"canceled"`
	StartedAt        string   `json:"started_at"`
	EndedAt          *string  `json:"ended_at"`
	Errors           []string `json:"errors"`
	LastError        *string  `json:"last_error"`
}

// PromptTemplate is a prompt template known to the controller.
type PromptTemplate struct {
	Version     string  `json:"version"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// LLMConfig is a recorded model + prompt configuration.
type LLMConfig struct {
	ConfigID              string  `json:"config_id"`
	Model                 string  `json:"model"`
	PromptTemplateVersion string  `json:"prompt_template_version"`
	PromptVersion         string  `json:"prompt_version"`
	CreatedAt             string  `json:"created_at"`
	ModelID               *string `json:"model_id"`
	ModelVersion          *string `json:"model_version"`
}

// LLMConfigRequest creates an LLM config. Optional fields are omitted when
// blank.
type LLMConfigRequest struct {
	Model                 string `json:"model"`
	PromptTemplateVersion string `json:"prompt_template_version"`
	PromptVersion         string `json:"prompt_version,omitempty"`
	ModelID               string `json:"model_id,omitempty"`
	ModelVersion          string `json:"model_version,omitempty"`
}
