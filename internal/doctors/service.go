package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/opd-frontdesk/internal/docstore"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

var doctorsTracer = otel.Tracer("frontdesk.internal.doctors")

// ErrInvalidDoctor marks a rejected add-doctor request.
var ErrInvalidDoctor = errors.New("doctors: invalid doctor")

// CreateRequest is the add-doctor form. Charges accepts a JSON number or a
// numeric string.
type CreateRequest struct {
	Name    string      `json:"name"`
	Charges json.Number `json:"charges"`
	Type    string      `json:"type"`
}

// Service writes new doctors to the store.
type Service struct {
	store  docstore.Store
	logger *logging.Logger
	now    func() time.Time
}

// NewService constructs a doctors service.
func NewService(store docstore.Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("doctors: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

func (r CreateRequest) validate() (document, error) {
	name := strings.TrimSpace(r.Name)
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Charges.String()) == "" {
		missing = append(missing, "charges")
	}
	if strings.TrimSpace(r.Type) == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return document{}, fmt.Errorf("%w: missing %s", ErrInvalidDoctor, strings.Join(missing, ", "))
	}
	charges, err := strconv.ParseFloat(strings.TrimSpace(r.Charges.String()), 64)
	if err != nil || math.IsNaN(charges) || math.IsInf(charges, 0) || charges <= 0 {
		return document{}, fmt.Errorf("%w: charges must be a positive number", ErrInvalidDoctor)
	}
	typ, ok := ParseType(r.Type)
	if !ok {
		return document{}, fmt.Errorf("%w: type must be OPD, IPD or Both", ErrInvalidDoctor)
	}
	return document{Name: name, Charges: charges, Type: typ}, nil
}

// Create validates req and stores a new doctor under a fresh key.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Doctor, error) {
	ctx, span := doctorsTracer.Start(ctx, "doctors.create")
	defer span.End()

	doc, err := req.validate()
	if err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return Doctor{}, err
	}
	doc.CreatedAt = s.now().UnixMilli()

	id, err := s.store.NewKey(ctx, Collection)
	if err != nil {
		span.RecordError(err)
		return Doctor{}, fmt.Errorf("doctors: allocate id: %w", err)
	}
	span.SetAttributes(attribute.String("frontdesk.doctor_id", id))

	if err := s.store.Set(ctx, docstore.Join(Collection, id), doc); err != nil {
		span.RecordError(err)
		return Doctor{}, fmt.Errorf("doctors: write %s: %w", id, err)
	}
	s.logger.Info("doctor added", "doctor_id", id, "type", doc.Type)
	return Doctor{
		ID:        id,
		Name:      doc.Name,
		Charges:   doc.Charges,
		Type:      doc.Type,
		CreatedAt: doc.CreatedAt,
	}, nil
}
