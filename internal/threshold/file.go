package threshold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/smartcost/backend/internal/model"
)

// FileProvider reads thresholds from an HCL or YAML file on every call, so
// edits take effect without a restart. Entries that fail validation are
// logged and skipped; the rest are still served.
type FileProvider struct {
	path   string
	logger *slog.Logger
}

// NewFileProvider creates a provider for path. The format is chosen by
// extension: .hcl, .yaml or .yml.
func NewFileProvider(path string, logger *slog.Logger) (*FileProvider, error) {
	if _, err := formatOf(path); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileProvider{path: path, logger: logger}, nil
}

// Path returns the backing file path.
func (p *FileProvider) Path() string {
	return p.path
}

// ListThresholds loads the file and returns its valid thresholds. Only an
// unreadable or unparsable file is an error.
func (p *FileProvider) ListThresholds(ctx context.Context) ([]model.CostThreshold, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thresholds, invalid, err := readFile(p.path)
	if err != nil {
		return nil, err
	}
	for _, e := range invalid {
		p.logger.Warn("skipping invalid threshold", "path", p.path, "error", e)
	}
	return thresholds, nil
}

// LoadFile parses a threshold file and fails if any entry is invalid.
func LoadFile(path string) ([]model.CostThreshold, error) {
	thresholds, invalid, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%s: %w", path, errors.Join(invalid...))
	}
	return thresholds, nil
}

// readFile returns the valid thresholds in file order along with one error
// per rejected entry. A later entry reusing an accepted ID is rejected.
func readFile(path string) ([]model.CostThreshold, []error, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read threshold file: %w", err)
	}

	var specs []thresholdSpec
	switch format {
	case "hcl":
		specs, err = parseHCL(src, path)
	default:
		specs, err = parseYAML(src)
	}
	if err != nil {
		return nil, nil, err
	}

	var invalid []error
	seen := make(map[string]struct{}, len(specs))
	thresholds := make([]model.CostThreshold, 0, len(specs))
	for _, s := range specs {
		t, err := s.toModel()
		if err == nil {
			err = Validate(t)
		}
		if err != nil {
			invalid = append(invalid, err)
			continue
		}
		if _, dup := seen[t.ID]; dup {
			invalid = append(invalid, fmt.Errorf("%w %q: duplicate id", ErrInvalid, t.ID))
			continue
		}
		seen[t.ID] = struct{}{}
		thresholds = append(thresholds, t)
	}
	return thresholds, invalid, nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return "hcl", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unsupported threshold file %q: want .hcl, .yaml or .yml", path)
	}
}

// thresholdSpec is the on-disk shape. Amounts are strings so they parse
// straight into decimals.
type thresholdSpec struct {
	ID            string  `hcl:"id,label" yaml:"id"`
	Name          string  `hcl:"name" yaml:"name"`
	ResourceGroup *string `hcl:"resource_group,optional" yaml:"resource_group,omitempty"`
	ServiceName   *string `hcl:"service_name,optional" yaml:"service_name,omitempty"`
	Amount        string  `hcl:"amount" yaml:"amount"`
	AlertLevel    string  `hcl:"alert_level" yaml:"alert_level"`
	AlertType     *string `hcl:"alert_type,optional" yaml:"alert_type,omitempty"`
	Enabled       *bool   `hcl:"enabled,optional" yaml:"enabled,omitempty"`
}

type hclFile struct {
	Thresholds []thresholdSpec `hcl:"threshold,block"`
}

type yamlFile struct {
	Thresholds []thresholdSpec `yaml:"thresholds"`
}

func (s thresholdSpec) toModel() (model.CostThreshold, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s.Amount))
	if err != nil {
		return model.CostThreshold{}, fmt.Errorf("%w %q: amount %q is not a number", ErrInvalid, s.ID, s.Amount)
	}

	t := model.CostThreshold{
		ID:         s.ID,
		Name:       s.Name,
		Amount:     amount,
		AlertLevel: model.AlertLevel(s.AlertLevel),
		AlertType:  model.AlertTypeDailyCostThreshold,
		IsEnabled:  true,
		CreatedAt:  time.Now().UTC(),
	}
	if s.ResourceGroup != nil {
		t.ResourceGroup = *s.ResourceGroup
	}
	if s.ServiceName != nil {
		t.ServiceName = *s.ServiceName
	}
	if s.AlertType != nil {
		t.AlertType = model.AlertType(*s.AlertType)
	}
	if s.Enabled != nil {
		t.IsEnabled = *s.Enabled
	}
	return t, nil
}

func parseHCL(src []byte, filename string) ([]thresholdSpec, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse threshold file: %w", diags)
	}

	var out hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &out); diags.HasErrors() {
		return nil, fmt.Errorf("decode threshold file: %w", diags)
	}
	return out.Thresholds, nil
}

func parseYAML(src []byte) ([]thresholdSpec, error) {
	var out yamlFile
	if err := yaml.Unmarshal(src, &out); err != nil {
		return nil, fmt.Errorf("parse threshold file: %w", err)
	}
	return out.Thresholds, nil
}

// EncodeHCL renders thresholds in the file format LoadFile accepts.
func EncodeHCL(thresholds []model.CostThreshold) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	for i, t := range thresholds {
		if i > 0 {
			body.AppendNewline()
		}
		body.AppendBlock(gohcl.EncodeAsBlock(specFromModel(t), "threshold"))
	}
	return hclwrite.Format(f.Bytes())
}

// EncodeYAML renders thresholds in the YAML file format.
func EncodeYAML(thresholds []model.CostThreshold) ([]byte, error) {
	out := yamlFile{Thresholds: make([]thresholdSpec, 0, len(thresholds))}
	for _, t := range thresholds {
		out.Thresholds = append(out.Thresholds, specFromModel(t))
	}
	return yaml.Marshal(out)
}

func specFromModel(t model.CostThreshold) thresholdSpec {
	alertType := string(t.AlertType)
	enabled := t.IsEnabled
	s := thresholdSpec{
		ID:         t.ID,
		Name:       t.Name,
		Amount:     t.Amount.String(),
		AlertLevel: string(t.AlertLevel),
		AlertType:  &alertType,
		Enabled:    &enabled,
	}
	if t.ResourceGroup != "" {
		rg := t.ResourceGroup
		s.ResourceGroup = &rg
	}
	if t.ServiceName != "" {
		svc := t.ServiceName
		s.ServiceName = &svc
	}
	return s
}
