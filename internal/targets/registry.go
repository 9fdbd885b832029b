package targets

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/deployment"
	"github.com/nais/deploy-governance/internal/model"
)

// Registry holds the configured targets and their clients.
type Registry struct {
	lock    sync.RWMutex
	refs    []model.TargetRef
	clients map[string]deployment.TargetClient
}

func NewRegistry() *Registry {
	return &Registry{clients: map[string]deployment.TargetClient{}}
}

func (r *Registry) Register(ref model.TargetRef, client deployment.TargetClient) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exists := r.clients[ref.ID]; exists {
		return fmt.Errorf("target %q is already registered", ref.ID)
	}
	if ref.Health == "" {
		ref.Health = model.HealthUnknown
	}
	if ref.SyncStatus == "" {
		ref.SyncStatus = model.SyncUnknown
	}
	r.refs = append(r.refs, ref)
	r.clients[ref.ID] = client
	return nil
}

// Client implements deployment.Resolver.
func (r *Registry) Client(target model.TargetRef) (deployment.TargetClient, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[target.ID]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", target.ID)
	}
	return client, nil
}

// Resolve completes requested targets with their registered platform and
// endpoint. A version the caller knows the target to be running is kept.
func (r *Registry) Resolve(requested []model.TargetRef) ([]model.TargetRef, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ret := make([]model.TargetRef, 0, len(requested))
	for _, req := range requested {
		idx := slices.IndexFunc(r.refs, func(ref model.TargetRef) bool { return ref.ID == req.ID })
		if idx < 0 {
			return nil, fmt.Errorf("%w: unknown target %q", apierror.ErrInvalidInput, req.ID)
		}
		ref := r.refs[idx]
		if req.CurrentVersion != "" {
			ref.CurrentVersion = req.CurrentVersion
		}
		ret = append(ret, ref)
	}
	return ret, nil
}

func (r *Registry) Targets() []model.TargetRef {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return slices.Clone(r.refs)
}

// HealthCheck asks every registered target for its status.
func (r *Registry) HealthCheck(ctx context.Context) []model.TargetRef {
	refs := r.Targets()
	g, ctx := errgroup.WithContext(ctx)
	for i := range refs {
		i := i
		client, err := r.Client(refs[i])
		if err != nil {
			continue
		}
		g.Go(func() error {
			status := client.HealthCheck(ctx, refs[i])
			refs[i].Health = status.Health
			if status.Version != "" {
				refs[i].CurrentVersion = status.Version
			}
			return nil
		})
	}
	_ = g.Wait()
	return refs
}
