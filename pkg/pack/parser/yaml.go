package parser

import (
	"gopkg.in/yaml.v3"

	"skuldbot/compliance/pkg/pack"
)

// yamlPack mirrors the pack file layout before conversion.
type yamlPack struct {
	ID                  string                     `yaml:"id"`
	Version             string                     `yaml:"version"`
	Tenant              string                     `yaml:"tenant"`
	Industry            string                     `yaml:"industry"`
	BaseStandard        string                     `yaml:"baseStandard"`
	Description         string                     `yaml:"description"`
	Defaults            pack.Defaults              `yaml:"defaults"`
	Controls            []pack.ControlDef          `yaml:"controls"`
	DataClassifications map[string]yamlClassPolicy `yaml:"dataClassifications"`
	Approvals           yamlApprovals              `yaml:"approvals"`
	Rules               []yamlRule                 `yaml:"rules"`
}

type yamlClassPolicy struct {
	MaxRetentionDays  *int     `yaml:"maxRetentionDays"`
	WarnRetentionDays *int     `yaml:"warnRetentionDays"`
	AllowedEgress     []string `yaml:"allowedEgress"`
	RequiredControls  []string `yaml:"requiredControls"`
}

type yamlApprovals struct {
	RequiredFor            []string `yaml:"requiredFor"`
	ApproverRoles          []string `yaml:"approverRoles"`
	EscalationAfterMinutes int      `yaml:"escalationAfterMinutes"`
}

type yamlRule struct {
	ID          string      `yaml:"id"`
	Description string      `yaml:"description"`
	When        yaml.Node   `yaml:"when"`
	Then        yamlOutcome `yaml:"then"`

	line   int
	column int
}

// UnmarshalYAML records the rule position alongside its fields.
func (r *yamlRule) UnmarshalYAML(node *yaml.Node) error {
	type plain yamlRule
	if err := node.Decode((*plain)(r)); err != nil {
		return err
	}
	r.line, r.column = node.Line, node.Column
	return nil
}

type yamlOutcome struct {
	Action   string   `yaml:"action"`
	Controls []string `yaml:"controls"`
	Severity string   `yaml:"severity"`
}

// decodeYAML parses data into the intermediate structure.
func decodeYAML(data []byte) (*yamlPack, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	var yp yamlPack
	if err := root.Decode(&yp); err != nil {
		return nil, err
	}
	return &yp, nil
}
