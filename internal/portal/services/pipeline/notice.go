package pipeline

import (
	"context"
	"strings"

	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

const (
	NoticeHeader = "X-Portal-Notice"
	NoticeText   = "menu filtering active"
)

// AdminNotice tells administrators on the module setup pages that client
// navigation is being filtered.
type AdminNotice struct {
	logger log.Logger
}

// NewAdminNotice returns an AdminNotice. A nil logger discards output.
func NewAdminNotice(logger log.Logger) *AdminNotice {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &AdminNotice{logger: logger}
}

func (n *AdminNotice) Apply(_ context.Context, req *domain.PortalRequest) domain.RedirectDecision {
	if req.Area != domain.AreaAdmin || !req.IsAdmin {
		return domain.NoRedirect()
	}
	if !strings.Contains(req.RawURI, "modules") {
		return domain.NoRedirect()
	}
	req.SetHeader(NoticeHeader, NoticeText)
	n.logger.Debug(map[string]any{"uri": req.RawURI}, "admin notice set")
	return domain.NoRedirect()
}
