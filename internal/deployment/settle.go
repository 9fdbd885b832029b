package deployment

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/nais/deploy-governance/internal/model"
	"github.com/nais/deploy-governance/internal/reputation"
)

// settle credits voters and the creator once a deployment reaches Deployed
// or Failed. It runs at most once per deployment.
func (o *Orchestrator) settle(ctx context.Context, d model.Deployment) {
	if d.ReputationSettled || (d.Status != model.StatusDeployed && d.Status != model.StatusFailed) {
		return
	}
	log := o.log.WithField("deployment_id", d.ID)
	success := d.Status == model.StatusDeployed

	_, err := o.update(ctx, d.ID, func(d *model.Deployment) error {
		if d.ReputationSettled {
			return errSkip
		}
		d.ReputationSettled = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, errSkip) {
			log.WithError(err).Error("marking reputation as settled")
		}
		return
	}

	if d.VotingRoundID != "" {
		votes, err := o.voting.Votes(ctx, d.VotingRoundID)
		if err != nil {
			log.WithError(err).Error("loading votes for reputation settlement")
		}
		for _, v := range votes {
			action := reputation.ActionInaccurateVote
			if (v.Choice == model.VoteApprove && success) || (v.Choice == model.VoteReject && !success) {
				action = reputation.ActionAccurateVote
			}
			if _, err := o.ledger.Apply(ctx, v.Voter, action, reputation.OutcomeContext{}); err != nil {
				log.WithError(err).WithField("user_id", v.Voter).Error("applying vote outcome")
			}
		}
	}

	action := reputation.ActionDeploymentFailure
	oc := reputation.OutcomeContext{}
	if success {
		action = reputation.ActionDeploymentSuccess
		oc.EnvironmentalImpact = d.EnvironmentalImpact
	}
	if _, err := o.ledger.Apply(ctx, d.CreatedBy, action, oc); err != nil {
		log.WithError(err).WithField("user_id", d.CreatedBy).Error("applying deployment outcome")
	}

	log.WithFields(logrus.Fields{"outcome": d.Status}).Info("reputation settled")
}
