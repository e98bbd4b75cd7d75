package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/desk"
	"deskseed/internal/domain"
)

// ResolveWorkingSet fetches the classification catalog with the
// administrator's session and returns a random sample of min(desired,
// active) active entries, without replacement.
func (e Engine) ResolveWorkingSet(ctx context.Context, admin *domain.Actor, desired int) ([]domain.TaxonomyEntry, error) {
	l := e.phase("taxonomy")
	l.WithField("desired", desired).Info("phase start")
	if admin == nil || admin.Role != domain.RoleAdministrator || !admin.Usable() {
		return nil, fatalf(nil, "no usable administrator to read the taxonomy")
	}
	var catalog []domain.TaxonomyEntry
	err := e.call(ctx, desk.OpTaxonomy, admin, "", func(ctx context.Context) error {
		var err error
		catalog, err = e.Desk.Taxonomy(ctx, admin.Token)
		return err
	})
	if err != nil {
		return nil, fatalf(err, "taxonomy catalog unavailable")
	}
	var active []domain.TaxonomyEntry
	for _, t := range catalog {
		if t.Active {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil, fatalf(nil, "taxonomy has no active entries (catalog size %d)", len(catalog))
	}
	n := desired
	if n <= 0 || n > len(active) {
		n = len(active)
	}
	set := shuffle(e.Rand, active)[:n]
	if e.Report != nil {
		e.Report.Taxonomy = len(set)
	}
	l.WithFields(log.Fields{"catalog": len(catalog), "active": len(active), "selected": len(set)}).Info("phase done")
	return set, nil
}
