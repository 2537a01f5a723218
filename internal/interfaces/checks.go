package interfaces

import (
	"github.com/mrlokans/biblioteca/internal/audit"
	"github.com/mrlokans/biblioteca/internal/catalog"
	"github.com/mrlokans/biblioteca/internal/circulation"
	"github.com/mrlokans/biblioteca/internal/tasks"
)

var (
	_ tasks.LoanMaintainer          = (*circulation.Service)(nil)
	_ tasks.MembershipExpirer       = (*catalog.Service)(nil)
	_ tasks.AuditEventCleaner       = (*audit.Service)(nil)
	_ circulation.MembershipExpirer = (*catalog.Service)(nil)
)
