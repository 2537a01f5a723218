// Package interfaces documents the seams between the packages and holds
// compile-time checks that the concrete services satisfy them.
//
// # Interface Categories
//
// ## Background work
//
//   - tasks.LoanMaintainer: overdue sweep and fine recalculation (circulation.Service)
//   - tasks.MembershipExpirer: membership expiry (catalog.Service)
//   - tasks.AuditEventCleaner: audit retention (audit.Service)
//   - circulation.MembershipExpirer: the expiry step of a maintenance run (catalog.Service)
//
// # Adding a New Background Task
//
//  1. Declare the task and its processor in internal/tasks/
//
//     type RenewReadersTask struct {
//     RequestedBy uint `json:"requested_by"`
//     }
//
//     func (t RenewReadersTask) Config() backlite.QueueConfig {
//     return maintenanceQueue(TypeRenewReaders)
//     }
//
//  2. Add the type to the registry in internal/tasks/registry.go so that
//     Build, Types and RegisterAll know about it.
//
//  3. If the processor needs a new service method, add it to an interface in
//     internal/tasks/ and assert the implementation in checks.go here.
//
// The task is then available from POST /api/tasks and the enqueue command.
package interfaces
