package threshold

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/smartcost/backend/internal/model"
)

// ErrInvalid is returned for thresholds that cannot be evaluated.
var ErrInvalid = errors.New("invalid threshold")

var validate = validator.New()

// Validate checks struct tags, a positive amount and known enum values.
func Validate(t model.CostThreshold) error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalid, t.ID, err)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w %q: amount must be greater than zero, got %s", ErrInvalid, t.ID, t.Amount.String())
	}
	if !t.AlertLevel.Valid() {
		return fmt.Errorf("%w %q: unknown alert level %q", ErrInvalid, t.ID, t.AlertLevel)
	}
	if !t.AlertType.Valid() {
		return fmt.Errorf("%w %q: unknown alert type %q", ErrInvalid, t.ID, t.AlertType)
	}
	return nil
}

// ValidateAll validates every threshold and rejects duplicate IDs.
func ValidateAll(thresholds []model.CostThreshold) error {
	seen := make(map[string]struct{}, len(thresholds))
	var errs []error
	for _, t := range thresholds {
		if err := Validate(t); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[t.ID]; dup {
			errs = append(errs, fmt.Errorf("%w %q: duplicate id", ErrInvalid, t.ID))
			continue
		}
		seen[t.ID] = struct{}{}
	}
	return errors.Join(errs...)
}

// ValidateCreate checks an API create request.
func ValidateCreate(req model.ThresholdCreateRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalid)
	}
	if req.AlertType != "" && !req.AlertType.Valid() {
		return fmt.Errorf("%w: unknown alert type %q", ErrInvalid, req.AlertType)
	}
	return nil
}

// FromCreateRequest builds a new threshold from an API request. The request
// must already be validated.
func FromCreateRequest(req model.ThresholdCreateRequest) model.CostThreshold {
	t := model.CostThreshold{
		ID:            model.NewThresholdID(),
		Name:          req.Name,
		ResourceGroup: req.ResourceGroup,
		ServiceName:   req.ServiceName,
		Amount:        req.Amount,
		AlertLevel:    req.AlertLevel,
		AlertType:     req.AlertType,
		IsEnabled:     true,
	}
	if t.AlertType == "" {
		t.AlertType = model.AlertTypeDailyCostThreshold
	}
	if req.IsEnabled != nil {
		t.IsEnabled = *req.IsEnabled
	}
	return t
}
