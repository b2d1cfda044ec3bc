package opd

import (
	"context"
	"fmt"
	"sync"

	"github.com/wolfman30/opd-frontdesk/internal/docstore"
	"github.com/wolfman30/opd-frontdesk/internal/doctors"
	"github.com/wolfman30/opd-frontdesk/internal/patients"
)

type setCall struct {
	Path  string
	Value any
}

// recordingStore wraps a MemoryStore, counts writes and can inject failures.
type recordingStore struct {
	*docstore.MemoryStore

	mu      sync.Mutex
	sets    []setCall
	keys    []string
	keyErr  error
	keyFail int
	setErr  error
}

func newRecordingStore() *recordingStore {
	n := 0
	return &recordingStore{
		MemoryStore: docstore.NewMemoryStore(docstore.WithKeyFunc(func(ctx context.Context, path string) (string, error) {
			n++
			return fmt.Sprintf("key%02d", n), nil
		})),
	}
}

func (r *recordingStore) NewKey(ctx context.Context, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.keyErr != nil {
		if r.keyFail <= 0 {
			return "", r.keyErr
		}
		r.keyFail--
	}
	r.keys = append(r.keys, path)
	return r.MemoryStore.NewKey(ctx, path)
}

func (r *recordingStore) Set(ctx context.Context, path string, value any) error {
	r.mu.Lock()
	r.sets = append(r.sets, setCall{Path: path, Value: value})
	err := r.setErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryStore.Set(ctx, path, value)
}

func (r *recordingStore) writes() []setCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]setCall(nil), r.sets...)
}

// staticRoster is a fixed roster snapshot.
type staticRoster[T any] struct {
	items []T
}

func (s *staticRoster[T]) Load() []T { return s.items }

var (
	drSharma = doctors.Doctor{ID: "doc-1", Name: "Dr. Anil Sharma", Charges: 500, Type: doctors.TypeOPD}
	drSunita = doctors.Doctor{ID: "doc-2", Name: "Dr. Sunita Sharma", Charges: 700, Type: doctors.TypeBoth}
	drMehta  = doctors.Doctor{ID: "doc-3", Name: "Dr. Mehta", Charges: 350, Type: doctors.TypeIPD}

	john   = patients.Patient{ID: "pat-1", Name: "John", Phone: "9876543210", Email: "john@example.com", Age: "40", Gender: "Male"}
	joanna = patients.Patient{ID: "pat-2", Name: "Joanna", Phone: "9123456780", Email: "joanna@example.com", Age: "31", Gender: "Female"}
	mike   = patients.Patient{ID: "pat-3", Name: "Mike", Phone: "9000000000", Email: "mike@example.com", Age: "52", Gender: "Male"}
)

func testDoctors() []doctors.Doctor { return []doctors.Doctor{drSharma, drSunita, drMehta} }

func testPatients() []patients.Patient { return []patients.Patient{john, joanna, mike} }

func completeForm() FormState {
	return FormState{
		Name:             "Priya Nair",
		Phone:            "9988776655",
		Email:            "priya@example.com",
		Age:              "34",
		Gender:           "female",
		SelectedDoctorID: drSharma.ID,
		Amount:           "500",
		PaymentMethod:    "online",
		Note:             "follow up",
	}
}
