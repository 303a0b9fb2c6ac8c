package appointment

import (
	"github.com/hackgods/dental-clinic-scheduling/internal/config"
	"github.com/hackgods/dental-clinic-scheduling/internal/consent"
	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

// NewValidator builds the scheduling validator on top of the Postgres
// repository, with the consent checker reading from the same pool.
func NewValidator(repo *PgRepository, cfg config.Config) *scheduling.Validator {
	return scheduling.NewValidator(repo, consent.NewChecker(repo, cfg.ClinicLocation), scheduling.Options{
		MinLeadTime:           cfg.MinLeadTime,
		LookupBuffer:          cfg.LookupBuffer,
		Location:              cfg.ClinicLocation,
		ConsentProcedureTypes: cfg.ConsentProcedureTypes,
	})
}
