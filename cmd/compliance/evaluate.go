package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"skuldbot/compliance/pkg/cli"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/engine"
	"skuldbot/compliance/pkg/policy/service"
)

var evaluateFlags struct {
	tenant   string
	bot      string
	packs    []string
	nodes    string
	phase    string
	now      string
	record   bool
	present  string
	baseline string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a bot's nodes against policy packs",
	Long: `Evaluate the nodes of a bot against the tenant's bound packs, or against
packs pinned with --pack.

The nodes file is YAML or JSON: either a list of nodes or a document with
tenantId, botId, packs and nodes keys. Flags override the document.

  tenantId: acme
  botId: claims-intake
  nodes:
    - nodeId: fetch
      nodeCategory: email
      nodeType: email.read
      dataClassifications: [PHI]
      egress: INTERNAL
    - nodeId: upload
      nodeCategory: storage
      nodeType: s3.upload
      dataClassifications: [PHI]
      egress: EXTERNAL

At runtime, --present names a file mapping node ids to the controls the
running bot reports; injected controls that are absent fail the evaluation.
--baseline compares with an earlier JSON report and fails on drift.

Examples:
  compliance evaluate --tenant acme --nodes bot.yaml
  compliance evaluate --pack hipaa@1.0.0 --nodes bot.yaml --format json
  compliance evaluate --nodes bot.yaml --phase runtime --present controls.yaml --baseline compiled.json`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	f := evaluateCmd.Flags()
	f.StringVarP(&evaluateFlags.tenant, "tenant", "t", "", "tenant id")
	f.StringVar(&evaluateFlags.bot, "bot", "", "bot id")
	f.StringArrayVarP(&evaluateFlags.packs, "pack", "p", nil, "pin a pack as id@version (repeatable)")
	f.StringVarP(&evaluateFlags.nodes, "nodes", "n", "", "nodes file (YAML or JSON)")
	f.StringVar(&evaluateFlags.phase, "phase", string(engine.PhaseCompile), "evaluation phase: compile, runtime")
	f.StringVar(&evaluateFlags.now, "now", "", "evaluation time (RFC3339), default now")
	f.BoolVar(&evaluateFlags.record, "record", false, "record evidence in the configured store")
	f.StringVar(&evaluateFlags.present, "present", "", "controls reported by the running bot (YAML map of node id to controls)")
	f.StringVar(&evaluateFlags.baseline, "baseline", "", "earlier JSON report to check for drift")
	_ = evaluateCmd.MarkFlagRequired("nodes")
}

// botFile is the document form of a nodes file.
type botFile struct {
	TenantID string               `yaml:"tenantId"`
	BotID    string               `yaml:"botId"`
	Packs    []string             `yaml:"packs"`
	Nodes    []engine.NodeContext `yaml:"nodes"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	req, err := buildRequest()
	if err != nil {
		return err
	}

	var present map[string][]pack.ControlType
	if evaluateFlags.present != "" {
		if present, err = readPresentControls(evaluateFlags.present); err != nil {
			return cli.NewConfigError("present", err.Error())
		}
	}
	var baseline *cli.EvaluationReport
	if evaluateFlags.baseline != "" {
		if baseline, err = readReport(evaluateFlags.baseline); err != nil {
			return cli.NewConfigError("baseline", err.Error())
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.loadPacks(cmd.Context()); err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	if evaluateFlags.record && cfg.Evidence.Enabled {
		if err := a.openEvidence(); err != nil {
			return cli.NewCommandError("evaluate", err)
		}
	}
	if err := a.startEngine(); err != nil {
		return err
	}

	ev, err := a.service.Evaluate(cmd.Context(), req)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	report := cli.NewEvaluationReport(ev)
	if present != nil {
		report.MissingControls = engine.CheckControlsPresent(ev.Result, present)
	}
	if baseline != nil {
		report.Drift = engine.Drift(baseline.Result, ev.Result)
	}

	if err := f.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Passed() {
		return cli.ErrEvaluationFailed
	}
	return nil
}

// buildRequest reads the nodes file and applies the flag overrides.
func buildRequest() (service.Request, error) {
	doc, err := readBotFile(evaluateFlags.nodes)
	if err != nil {
		return service.Request{}, cli.NewConfigError("nodes", err.Error())
	}

	req := service.Request{
		TenantID: doc.TenantID,
		BotID:    doc.BotID,
		Nodes:    doc.Nodes,
		Phase:    engine.Phase(evaluateFlags.phase),
	}
	if evaluateFlags.tenant != "" {
		req.TenantID = evaluateFlags.tenant
	}
	if evaluateFlags.bot != "" {
		req.BotID = evaluateFlags.bot
	}

	refs := doc.Packs
	if len(evaluateFlags.packs) > 0 {
		refs = evaluateFlags.packs
	}
	for _, s := range refs {
		ref, err := pack.ParseRef(s)
		if err != nil {
			return service.Request{}, cli.NewConfigError("pack", err.Error())
		}
		req.Packs = append(req.Packs, ref)
	}

	if evaluateFlags.now != "" {
		now, err := time.Parse(time.RFC3339, evaluateFlags.now)
		if err != nil {
			return service.Request{}, cli.NewConfigError("now", err.Error())
		}
		req.Now = now
	}

	if req.TenantID == "" && len(req.Packs) == 0 {
		return service.Request{}, cli.NewConfigError("tenant", "either --tenant or --pack is required")
	}
	return req, nil
}

// readBotFile decodes a nodes file. A top-level list is read as the nodes.
func readBotFile(path string) (*botFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("%s: empty document", path)
	}

	doc := &botFile{}
	node := root.Content[0]
	if node.Kind == yaml.SequenceNode {
		err = node.Decode(&doc.Nodes)
	} else {
		err = node.Decode(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("%s: no nodes", path)
	}
	return doc, nil
}

func readPresentControls(path string) (map[string][]pack.ControlType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	present := make(map[string][]pack.ControlType, len(raw))
	for nodeID, names := range raw {
		for _, name := range names {
			c, err := pack.ParseControl(name)
			if err != nil {
				return nil, fmt.Errorf("%s: node %s: %w", path, nodeID, err)
			}
			present[nodeID] = append(present[nodeID], c)
		}
	}
	return present, nil
}

func readReport(path string) (*cli.EvaluationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	report := &cli.EvaluationReport{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if report.Result == nil {
		return nil, errors.New(path + ": report has no result")
	}
	return report, nil
}
