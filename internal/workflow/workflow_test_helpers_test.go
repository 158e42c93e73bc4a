package workflow

import (
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/cloudlease/blueprints/internal/activity"
)

// registerActivities registers activity structs with the test workflow
// environment so that parameter and return types can be deserialized correctly
// by the Temporal test framework. In unit tests, all activities are mocked via
// OnActivity, but the framework still needs the type information for proper
// serialization/deserialization of activity parameters and return values.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.StackSets{})
	env.RegisterActivity(&activity.BlueprintDB{})
	env.RegisterActivity(&activity.Publish{})
}

// matchPublish matches a PublishResult input by status alone. Duration and the
// exact error message depend on simulated workflow time and are not asserted
// here.
func matchPublish(status string) interface{} {
	return mock.MatchedBy(func(in activity.PublishResultInput) bool {
		return in.Status == status && in.Action == activity.ActionPublishResult
	})
}

// matchCreate matches a CreateStackInstances input for a specific target.
func matchCreate(stackSetID string) interface{} {
	return mock.MatchedBy(func(in activity.CreateStackInstancesInput) bool {
		return in.StackSetID == stackSetID &&
			in.Action == activity.ActionCreate &&
			in.StartedAt != nil
	})
}
