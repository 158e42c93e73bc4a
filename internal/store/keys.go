package store

import (
	"fmt"
	"time"
)

// Record types stored in the blueprint_records table.
const (
	RecordTypeBlueprint  = "blueprint"
	RecordTypeStackSet   = "stackset"
	RecordTypeDeployment = "deployment"
)

// PartitionKey returns the partition key shared by every record belonging to
// one blueprint.
func PartitionKey(blueprintID string) string {
	return "blueprint#" + blueprintID
}

// BlueprintSortKey is the sort key of the blueprint record itself.
const BlueprintSortKey = "blueprint"

// StackSetSortKey returns the sort key of one target configuration record.
func StackSetSortKey(stackSetID string) string {
	return "stackset#" + stackSetID
}

// DeploymentSortKey returns the sort key of one deployment attempt. The
// timestamp-then-operation-id layout keeps history naturally sorted
// chronologically within the partition.
func DeploymentSortKey(startedAt time.Time, operationID string) string {
	return fmt.Sprintf("deployment#%s#%s", startedAt.UTC().Format(time.RFC3339), operationID)
}
