package search

import (
	"context"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/nais/deploy-governance/internal/model"
)

type Result struct {
	Rank       int
	Deployment model.Deployment
}

type Searchable interface {
	Search(ctx context.Context, q string) ([]*Result, error)
}

type Searcher struct {
	searchables []Searchable
}

func New(s ...Searchable) *Searcher {
	return &Searcher{searchables: s}
}

// Search returns results from every searchable, best match first.
func (s *Searcher) Search(ctx context.Context, q string) ([]*Result, error) {
	ret := []*Result{}
	for _, searchable := range s.searchables {
		results, err := searchable.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		ret = append(ret, results...)
	}

	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Rank < ret[j].Rank
	})

	return ret, nil
}

// Match returns the rank of a match between q and val. 0 means best match. -1 means no match.
func Match(q, val string) int {
	return fuzzy.RankMatchFold(q, val)
}

type Lister interface {
	ListDeployments(ctx context.Context) ([]model.Deployment, error)
}

// Deployments matches on id, version, creator, status and changed paths.
type Deployments struct {
	lister Lister
}

func NewDeployments(lister Lister) *Deployments {
	return &Deployments{lister: lister}
}

func (d *Deployments) Search(ctx context.Context, q string) ([]*Result, error) {
	deployments, err := d.lister.ListDeployments(ctx)
	if err != nil {
		return nil, err
	}

	ret := []*Result{}
	for _, dep := range deployments {
		rank := bestRank(q, dep)
		if rank == -1 {
			continue
		}
		ret = append(ret, &Result{Rank: rank, Deployment: dep})
	}
	return ret, nil
}

func bestRank(q string, d model.Deployment) int {
	best := -1
	values := []string{d.ID, d.Version, d.CreatedBy, string(d.Status)}
	for _, c := range d.Changes {
		values = append(values, c.Path)
	}
	for _, v := range values {
		rank := Match(q, v)
		if rank == -1 {
			continue
		}
		if best == -1 || rank < best {
			best = rank
		}
	}
	return best
}
