package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/storage"
)

// UninstallService best-effort undeploys an installation, then removes its
// row regardless of whether undeploy succeeded.
type UninstallService struct {
	repo   storage.Repository
	deploy *deploy.Service
	bus    *events.Bus
}

func NewUninstallService(repo storage.Repository, deploySvc *deploy.Service, bus *events.Bus) *UninstallService {
	return &UninstallService{repo: repo, deploy: deploySvc, bus: bus}
}

// Run undeploys and removes installationID. Undeploy failures are logged via
// the event stream but do not block the installation row from being
// deleted — an orphaned deployed directory is preferable to an installation
// the repository believes no longer exists yet still occupies disk.
func (s *UninstallService) Run(ctx context.Context, installationID string) error {
	operationID := uuid.NewString()
	s.publish(&events.Event{Kind: events.KindUninstallStarted, OperationID: operationID, InstallationID: installationID})

	installation, err := s.repo.GetInstallationByID(ctx, installationID)
	if err != nil {
		s.publish(&events.Event{Kind: events.KindUninstallError, OperationID: operationID, InstallationID: installationID, Error: err.Error()})
		return fmt.Errorf("find installation: %w", err)
	}

	version, err := s.repo.GetVersionByID(ctx, installation.SkillVersionID)
	if err == nil {
		if skill, skillErr := s.repo.GetByID(ctx, version.SkillID); skillErr == nil {
			if undeployErr := s.deploy.Undeploy(ctx, installation, version, skill); undeployErr != nil {
				s.publish(&events.Event{
					Kind: events.KindUninstallError, OperationID: operationID,
					InstallationID: installationID, Slug: skill.Slug, Error: undeployErr.Error(),
				})
			}
		}
	}

	if err := s.repo.Uninstall(ctx, installationID); err != nil {
		s.publish(&events.Event{Kind: events.KindUninstallError, OperationID: operationID, InstallationID: installationID, Error: err.Error()})
		return fmt.Errorf("delete installation: %w", err)
	}

	s.publish(&events.Event{Kind: events.KindUninstallCompleted, OperationID: operationID, InstallationID: installationID})
	return nil
}

func (s *UninstallService) publish(e *events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}
