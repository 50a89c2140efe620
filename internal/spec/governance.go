package spec

import "github.com/attestable/controlcore/internal/ir"

// TestingFrequency is the closed set of cadences a control may declare.
type TestingFrequency string

const (
	Continuous TestingFrequency = "Continuous"
	Daily      TestingFrequency = "Daily"
	Weekly     TestingFrequency = "Weekly"
	Quarterly  TestingFrequency = "Quarterly"
	Annual     TestingFrequency = "Annual"
)

func (f TestingFrequency) valid() bool {
	switch f {
	case Continuous, Daily, Weekly, Quarterly, Annual:
		return true
	default:
		return false
	}
}

// ReviewerWorkflow is the closed set of dispositions evidence review may
// take once a verdict is reached.
type ReviewerWorkflow string

const (
	AutoCloseIfPass      ReviewerWorkflow = "Auto-Close_If_Pass"
	RequiresHumanSignoff ReviewerWorkflow = "Requires_Human_Signoff"
	FourEyesReview       ReviewerWorkflow = "Four_Eyes_Review"
)

func (w ReviewerWorkflow) valid() bool {
	switch w {
	case AutoCloseIfPass, RequiresHumanSignoff, FourEyesReview:
		return true
	default:
		return false
	}
}

// Governance carries the policy metadata a control is tested under: who
// owns it, how often it runs, and what regulation it answers to. None of
// it is consulted by the compiler — it exists for the audit trail.
type Governance struct {
	ControlID           string
	Version             string
	OwnerRole           string
	TestingFrequency    TestingFrequency
	RegulatoryCitations []string
	RiskObjective       string
}

// NewGovernance validates and constructs a Governance block.
func NewGovernance(controlID, version, ownerRole string, frequency TestingFrequency, regulatoryCitations []string, riskObjective string) (Governance, error) {
	if controlID == "" {
		return Governance{}, invalid("governance.control_id", "control_id is required")
	}
	if version == "" {
		return Governance{}, invalid("governance.version", "version is required")
	}
	if ownerRole == "" {
		return Governance{}, invalid("governance.owner_role", "owner_role is required")
	}
	if !frequency.valid() {
		return Governance{}, invalid("governance.testing_frequency", "unknown testing_frequency %q", frequency)
	}
	if riskObjective == "" {
		return Governance{}, invalid("governance.risk_objective", "risk_objective is required")
	}
	return Governance{
		ControlID:           controlID,
		Version:             version,
		OwnerRole:           ownerRole,
		TestingFrequency:    frequency,
		RegulatoryCitations: regulatoryCitations,
		RiskObjective:       riskObjective,
	}, nil
}

// OntologyBinding maps a business term onto a physical manifest column.
// It is non-normative for execution — the compiler never reads it — and
// exists purely so reviewers can audit the mapping from policy language
// to physical columns.
type OntologyBinding struct {
	BusinessTerm   string
	DatasetAlias   ir.DatasetAlias
	TechnicalField string
	LogicalType    LogicalType
}

// LogicalType is the closed set of column types a manifest may declare.
type LogicalType string

const (
	TypeString    LogicalType = "string"
	TypeNumeric   LogicalType = "numeric"
	TypeBoolean   LogicalType = "boolean"
	TypeDate      LogicalType = "date"
	TypeTimestamp LogicalType = "timestamp"
)

func (t LogicalType) valid() bool {
	switch t {
	case TypeString, TypeNumeric, TypeBoolean, TypeDate, TypeTimestamp:
		return true
	default:
		return false
	}
}

// NewOntologyBinding validates and constructs an OntologyBinding.
func NewOntologyBinding(path, businessTerm string, alias ir.DatasetAlias, technicalField string, logicalType LogicalType) (OntologyBinding, error) {
	if businessTerm == "" {
		return OntologyBinding{}, invalid(path+".business_term", "business_term is required")
	}
	if alias == "" {
		return OntologyBinding{}, invalid(path+".dataset_alias", "dataset_alias is required")
	}
	if technicalField == "" {
		return OntologyBinding{}, invalid(path+".technical_field", "technical_field is required")
	}
	if !logicalType.valid() {
		return OntologyBinding{}, invalid(path+".logical_type", "unknown logical_type %q", logicalType)
	}
	return OntologyBinding{BusinessTerm: businessTerm, DatasetAlias: alias, TechnicalField: technicalField, LogicalType: logicalType}, nil
}

// EvidenceRequirements declares the retention and review disposition of
// a control's evidence once a verdict is reached.
type EvidenceRequirements struct {
	RetentionYears        int
	ReviewerWorkflow      ReviewerWorkflow
	ExceptionRoutingQueue string
}

// NewEvidenceRequirements validates and constructs an EvidenceRequirements block.
func NewEvidenceRequirements(retentionYears int, workflow ReviewerWorkflow, exceptionRoutingQueue string) (EvidenceRequirements, error) {
	if retentionYears <= 0 {
		return EvidenceRequirements{}, invalid("evidence.retention_years", "retention_years must be > 0, got %d", retentionYears)
	}
	if !workflow.valid() {
		return EvidenceRequirements{}, invalid("evidence.reviewer_workflow", "unknown reviewer_workflow %q", workflow)
	}
	if exceptionRoutingQueue == "" {
		return EvidenceRequirements{}, invalid("evidence.exception_routing_queue", "exception_routing_queue is required")
	}
	return EvidenceRequirements{RetentionYears: retentionYears, ReviewerWorkflow: workflow, ExceptionRoutingQueue: exceptionRoutingQueue}, nil
}
