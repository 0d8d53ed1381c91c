package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"flownetwork-platform/internal/models"
)

type realizationKey struct {
	ensemble    EnsembleKey
	realization int
}

var _ FlowDataRepository = (*MemoryStore)(nil)

// MemoryStore keeps group trees and summary samples in memory. It backs the demo
// command and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	ensembles map[EnsembleKey]time.Time
	columns   map[realizationKey][]string
	trees     map[realizationKey][]models.GroupTreeRow
	summaries map[realizationKey][]models.SummarySample
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ensembles: make(map[EnsembleKey]time.Time),
		columns:   make(map[realizationKey][]string),
		trees:     make(map[realizationKey][]models.GroupTreeRow),
		summaries: make(map[realizationKey][]models.SummarySample),
	}
}

// UpsertEnsemble registers an ensemble
func (m *MemoryStore) UpsertEnsemble(ctx context.Context, key EnsembleKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ensembles[key]; !ok {
		m.ensembles[key] = time.Now().UTC()
	}
	return nil
}

// EnsembleExists reports whether the ensemble was registered
func (m *MemoryStore) EnsembleExists(ctx context.Context, key EnsembleKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ensembles[key]
	return ok, nil
}

// ListEnsembles returns the registered ensembles with their group tree realizations
func (m *MemoryStore) ListEnsembles(ctx context.Context) ([]*EnsembleInfo, error) {
	m.mu.RLock()
	infos := make([]*EnsembleInfo, 0, len(m.ensembles))
	for key, created := range m.ensembles {
		infos = append(infos, &EnsembleInfo{CaseUUID: key.CaseUUID, EnsembleName: key.Ensemble, CreatedAt: created})
	}
	m.mu.RUnlock()

	for _, info := range infos {
		info.Realizations = m.Realizations(EnsembleKey{CaseUUID: info.CaseUUID, Ensemble: info.EnsembleName})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CaseUUID != infos[j].CaseUUID {
			return infos[i].CaseUUID < infos[j].CaseUUID
		}
		return infos[i].EnsembleName < infos[j].EnsembleName
	})
	return infos, nil
}

// ReplaceGroupTree replaces the group tree of a realization with rows carrying every column
func (m *MemoryStore) ReplaceGroupTree(ctx context.Context, key EnsembleKey, realization int, rows []models.GroupTreeRow) error {
	m.PutGroupTree(key, realization, &models.GroupTreeTable{
		Columns: append(append([]string(nil), models.RequiredGroupTreeColumns...), models.ColumnVFPTable),
		Rows:    rows,
	})
	return nil
}

// HealthCheck always succeeds
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// PutGroupTree replaces the group tree of a realization
func (m *MemoryStore) PutGroupTree(key EnsembleKey, realization int, table *models.GroupTreeTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := realizationKey{key, realization}
	m.columns[k] = append([]string(nil), table.Columns...)
	m.trees[k] = append([]models.GroupTreeRow(nil), table.Rows...)
}

// GetGroupTreeTable returns a copy of the stored group tree
func (m *MemoryStore) GetGroupTreeTable(ctx context.Context, key EnsembleKey, realization int) (*models.GroupTreeTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := realizationKey{key, realization}
	rows, ok := m.trees[k]
	if !ok || len(rows) == 0 {
		return nil, &models.NoDataError{
			Resource: "group tree",
			ID:       fmt.Sprintf("%s realization %d", key, realization),
		}
	}
	return &models.GroupTreeTable{
		Columns: append([]string(nil), m.columns[k]...),
		Rows:    append([]models.GroupTreeRow(nil), rows...),
	}, nil
}

// WriteSummarySamples appends samples to a realization
func (m *MemoryStore) WriteSummarySamples(ctx context.Context, key EnsembleKey, realization int, samples []models.SummarySample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := realizationKey{key, realization}
	m.summaries[k] = append(m.summaries[k], samples...)
	return nil
}

// ListVectorNames returns the sorted distinct vector names of every realization of the ensemble
func (m *MemoryStore) ListVectorNames(ctx context.Context, key EnsembleKey) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[string]bool)
	for k, samples := range m.summaries {
		if k.ensemble != key {
			continue
		}
		for _, s := range samples {
			set[s.VectorName] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetSummarySamples returns the samples of the named vectors in date order
func (m *MemoryStore) GetSummarySamples(
	ctx context.Context,
	key EnsembleKey,
	realization int,
	vectorNames []string,
	frequency models.Frequency,
) ([]models.SummarySample, error) {
	wanted := make(map[string]bool, len(vectorNames))
	for _, name := range vectorNames {
		wanted[name] = true
	}

	m.mu.RLock()
	var out []models.SummarySample
	for _, s := range m.summaries[realizationKey{key, realization}] {
		if wanted[s.VectorName] {
			out = append(out, s)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return resampleLast(out, frequency)
}

// Realizations returns the realizations of the ensemble that have a group tree
func (m *MemoryStore) Realizations(key EnsembleKey) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var reals []int
	for k := range m.trees {
		if k.ensemble == key {
			reals = append(reals, k.realization)
		}
	}
	sort.Ints(reals)
	return reals
}
