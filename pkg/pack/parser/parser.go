package parser

import (
	"fmt"
	"os"
	"strings"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// Parser converts pack YAML into pack.Pack values.
type Parser struct {
	maxFileSize int64
	maxDepth    int
}

// NewParser creates a parser with a 1MB size limit and a predicate
// nesting limit of 8.
func NewParser() *Parser {
	return &Parser{
		maxFileSize: 1024 * 1024,
		maxDepth:    8,
	}
}

// WithMaxFileSize sets the maximum accepted input size in bytes.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// WithMaxDepth sets the maximum predicate nesting depth.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	p.maxDepth = depth
	return p
}

// Parse reads and parses the pack file at path.
func (p *Parser) Parse(path string) (*pack.Pack, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{File: path, Message: fmt.Sprintf("failed to access file: %v", err), Err: err}
	}
	if info.Size() > p.maxFileSize {
		return nil, &Error{
			File:    path,
			Message: fmt.Sprintf("file size %d exceeds maximum %d bytes", info.Size(), p.maxFileSize),
			Err:     ErrFileTooLarge,
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{File: path, Message: fmt.Sprintf("failed to read file: %v", err), Err: err}
	}
	return p.ParseBytes(data, path)
}

// ParseBytes parses pack YAML held in memory. sourcePath is used for error
// locations only.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*pack.Pack, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &Error{
			File:    sourcePath,
			Message: fmt.Sprintf("data size %d exceeds maximum %d bytes", len(data), p.maxFileSize),
			Err:     ErrFileTooLarge,
		}
	}

	yp, err := decodeYAML(data)
	if err != nil {
		return nil, &Error{
			File:       sourcePath,
			Line:       1,
			Column:     1,
			Message:    fmt.Sprintf("YAML parsing failed: %v", err),
			Suggestion: "check indentation, colons and quotes",
			Err:        ErrSyntax,
		}
	}

	b := &builder{sourcePath: sourcePath, maxDepth: p.maxDepth}
	pk := b.buildPack(yp)
	if err := b.errors.Err(); err != nil {
		return nil, err
	}
	return pk, nil
}

// builder converts the intermediate structure and collects every error.
type builder struct {
	sourcePath string
	maxDepth   int
	errors     pack.ErrorList
}

func (b *builder) errorf(line, column int, format string, args ...any) {
	b.errors.Add(&Error{
		File:    b.sourcePath,
		Line:    line,
		Column:  column,
		Message: fmt.Sprintf(format, args...),
		Err:     pack.ErrMalformedRule,
	})
}

func (b *builder) buildPack(yp *yamlPack) *pack.Pack {
	pk := &pack.Pack{
		ID:           strings.TrimSpace(yp.ID),
		Version:      strings.TrimSpace(yp.Version),
		Tenant:       strings.TrimSpace(yp.Tenant),
		Industry:     yp.Industry,
		BaseStandard: yp.BaseStandard,
		Description:  yp.Description,
		Defaults:     yp.Defaults,
		Approvals: pack.Approvals{
			RequiredFor:            yp.Approvals.RequiredFor,
			ApproverRoles:          yp.Approvals.ApproverRoles,
			EscalationAfterMinutes: yp.Approvals.EscalationAfterMinutes,
		},
		SourceFile: b.sourcePath,
	}

	for _, def := range yp.Controls {
		id, err := pack.ParseControl(string(def.ID))
		if err != nil {
			b.errorf(0, 0, "controls: %v", err)
			continue
		}
		pk.Controls = append(pk.Controls, pack.ControlDef{ID: id, Description: def.Description})
	}

	if len(yp.DataClassifications) > 0 {
		pk.DataClassifications = make(map[lattice.Classification]pack.ClassificationPolicy, len(yp.DataClassifications))
	}
	for key, ycp := range yp.DataClassifications {
		class, err := lattice.ParseClassification(key)
		if err != nil {
			b.errorf(0, 0, "dataClassifications: %v", err)
			continue
		}
		pk.DataClassifications[class] = b.buildClassPolicy(class, ycp)
	}

	pk.Rules = make([]*pack.Rule, 0, len(yp.Rules))
	for i := range yp.Rules {
		if r := b.buildRule(&yp.Rules[i], i); r != nil {
			pk.Rules = append(pk.Rules, r)
		}
	}

	return pk
}

func (b *builder) buildClassPolicy(class lattice.Classification, ycp yamlClassPolicy) pack.ClassificationPolicy {
	cp := pack.ClassificationPolicy{
		MaxRetentionDays:  ycp.MaxRetentionDays,
		WarnRetentionDays: ycp.WarnRetentionDays,
	}

	if ycp.AllowedEgress != nil {
		cp.AllowedEgress = make([]lattice.EgressScope, 0, len(ycp.AllowedEgress))
		for _, s := range ycp.AllowedEgress {
			scope, err := lattice.ParseEgress(s)
			if err != nil {
				b.errorf(0, 0, "dataClassifications.%s.allowedEgress: %v", class, err)
				continue
			}
			cp.AllowedEgress = append(cp.AllowedEgress, scope)
		}
	}

	for _, s := range ycp.RequiredControls {
		c, err := pack.ParseControl(s)
		if err != nil {
			b.errorf(0, 0, "dataClassifications.%s.requiredControls: %v", class, err)
			continue
		}
		cp.RequiredControls = append(cp.RequiredControls, c)
	}
	return cp
}

func (b *builder) buildRule(yr *yamlRule, index int) *pack.Rule {
	rule := &pack.Rule{
		ID:          strings.TrimSpace(yr.ID),
		Description: yr.Description,
		Line:        yr.line,
	}
	if rule.ID == "" {
		b.errorf(yr.line, yr.column, "rule at index %d has no id", index)
		return nil
	}

	if yr.When.Kind == 0 {
		b.errorf(yr.line, yr.column, "rule %s: missing when clause", rule.ID)
		return nil
	}
	when, err := b.buildPredicate(&yr.When, 0)
	if err != nil {
		b.errors.Add(&Error{
			File:    b.sourcePath,
			Line:    errLine(err, yr.When.Line),
			Column:  errColumn(err, yr.When.Column),
			Message: fmt.Sprintf("rule %s: %v", rule.ID, err),
			Err:     pack.ErrMalformedRule,
		})
		return nil
	}
	rule.When = when

	rule.Then.Action = pack.Action(strings.ToUpper(strings.TrimSpace(yr.Then.Action)))
	if !rule.Then.Action.Valid() {
		b.errorf(yr.line, yr.column, "rule %s: unsupported action %q", rule.ID, yr.Then.Action)
		return nil
	}

	rule.Then.Severity = pack.Severity(strings.ToUpper(strings.TrimSpace(yr.Then.Severity)))
	if yr.Then.Severity == "" {
		rule.Then.Severity = defaultSeverity(rule.Then.Action)
	}
	if !rule.Then.Severity.Valid() {
		b.errorf(yr.line, yr.column, "rule %s: unsupported severity %q", rule.ID, yr.Then.Severity)
		return nil
	}

	for _, s := range yr.Then.Controls {
		c, err := pack.ParseControl(s)
		if err != nil {
			b.errorf(yr.line, yr.column, "rule %s: %v", rule.ID, err)
			return nil
		}
		rule.Then.Controls = append(rule.Then.Controls, c)
	}

	return rule
}

// defaultSeverity is used when a rule omits severity.
func defaultSeverity(a pack.Action) pack.Severity {
	if a == pack.ActionBlock {
		return pack.SeverityHigh
	}
	return pack.SeverityMedium
}
