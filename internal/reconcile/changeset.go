package reconcile

import "strings"

const (
	changeCreatedConstant                 = "created"
	changeUpdatedConstant                 = "updated"
	changeKeyUpdatedConstant              = "key updated"
	changeSyncedConstant                  = "synced"
	unchangedMessageConstant              = "unchanged"
	changeSetSeparatorConstant            = ", "
	deletedMessageTemplateConstant        = "%s deleted"
	alreadyDeletedMessageTemplateConstant = "%s already deleted"
)

// ChangeSet accumulates the changes applied during one run.
type ChangeSet struct {
	entries []string
}

// Append records a change.
func (changeSet *ChangeSet) Append(entry string) {
	changeSet.entries = append(changeSet.entries, entry)
}

// Contains reports whether entry was recorded.
func (changeSet *ChangeSet) Contains(entry string) bool {
	for _, existingEntry := range changeSet.entries {
		if existingEntry == entry {
			return true
		}
	}
	return false
}

// Changed reports whether any change was recorded.
func (changeSet *ChangeSet) Changed() bool {
	return len(changeSet.entries) > 0
}

// Message joins the recorded changes, or reports that nothing changed.
func (changeSet *ChangeSet) Message() string {
	if !changeSet.Changed() {
		return unchangedMessageConstant
	}
	return strings.Join(changeSet.entries, changeSetSeparatorConstant)
}
