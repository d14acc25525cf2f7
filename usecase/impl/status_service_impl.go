package impl

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// StatusServiceImpl implements StatusService
type StatusServiceImpl struct {
	collector   usecase.CollectorService
	state       repository.StateRepository
	timezone    repository.TimezoneService
	credentials repository.CredentialsProvider
	logger      domain.Logger
}

// NewStatusService creates a new instance of StatusService
func NewStatusService(
	collector usecase.CollectorService,
	state repository.StateRepository,
	timezone repository.TimezoneService,
	credentials repository.CredentialsProvider,
	logger domain.Logger,
) *StatusServiceImpl {
	return &StatusServiceImpl{
		collector:   collector,
		state:       state,
		timezone:    timezone,
		credentials: credentials,
		logger:      logger,
	}
}

var _ usecase.StatusService = (*StatusServiceImpl)(nil)

// GetStatus returns the current status information
func (s *StatusServiceImpl) GetStatus(ctx context.Context) (*usecase.StatusInfo, error) {
	st, err := s.state.Load()
	if err != nil {
		return nil, err
	}

	info := &usecase.StatusInfo{
		LastSync:    usecase.NeverSynced,
		LastSyncAt:  st.LastSyncAt,
		LastError:   st.LastError,
		LastErrorAt: st.LastErrorAt,
		NextRunAt:   st.NextRunAt,
		JobName:     st.JobName,
		Timezone:    s.timezone.GetTimezoneInfo(),
	}

	snapshot, err := s.collector.Collect(ctx)
	if err != nil {
		info.CollectError = err.Error()
		s.logger.Warn(ctx, "Status rendered without a snapshot", domain.NewField("error", err.Error()))
	} else {
		info.Snapshot = snapshot
		info.TotalSize = entity.FormatSizeKB(snapshot.TotalSizeBytes)
	}

	if st.LastSyncAt != nil {
		info.LastSync = s.formatSiteTime(*st.LastSyncAt)
	}
	if st.NextRunAt != nil {
		info.NextRun = s.formatSiteTime(*st.NextRunAt)
	}

	if s.credentials != nil {
		creds, err := s.credentials.Credentials()
		if err != nil {
			info.MissingConfig = []string{err.Error()}
		} else {
			info.MissingConfig = creds.MissingFields()
		}
	}

	return info, nil
}

// formatSiteTime renders t in the site timezone followed by the zone label
func (s *StatusServiceImpl) formatSiteTime(t time.Time) string {
	return fmt.Sprintf("%s (%s)", s.timezone.FormatTimeForSite(t, entity.SnapshotTimeLayout), s.timezone.GetSiteLocation().String())
}
