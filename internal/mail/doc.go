// Package mail defines the mailbox port used by the triage workflow.
//
// The extract stage reads message context through Client.FetchMessage and
// the execute stage applies folder moves and sends replies through
// Client.ApplyLabel and Client.SendMessage. The Gmail implementation lives
// in the gmail subpackage; tests substitute in-memory fakes.
package mail
