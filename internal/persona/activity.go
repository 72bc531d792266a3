package persona

// ActivityType enumerates the events a persona's ledger can hold.
type ActivityType string

const (
	ActivityTaskAssigned     ActivityType = "task_assigned"
	ActivityTaskCompleted    ActivityType = "task_completed"
	ActivityTaskFailed       ActivityType = "task_failed"
	ActivityKudosReceived    ActivityType = "kudos_received"
	ActivityWtfReceived      ActivityType = "wtf_received"
	ActivityProcessViolation ActivityType = "process_violation"
	ActivityQualityIssue     ActivityType = "quality_issue"
	ActivityImported         ActivityType = "imported"
	ActivityScoreAdjustment  ActivityType = "score_adjustment"
	ActivityDelegation       ActivityType = "delegation"
	ActivityPeerReview       ActivityType = "peer_review"
)

// Tone is the presentation grouping of an activity type.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
)

// ActivityKind describes how the reputation engine treats an activity type.
type ActivityKind struct {
	Tone Tone
	// QuotaGated events consume one slot of the persona's daily quota.
	QuotaGated bool
	// RequiresActive events are rejected for deactivated personas.
	RequiresActive bool
}

var activityKinds = map[ActivityType]ActivityKind{
	ActivityTaskAssigned:     {Tone: ToneNeutral, RequiresActive: true},
	ActivityTaskCompleted:    {Tone: ToneNeutral, RequiresActive: true},
	ActivityTaskFailed:       {Tone: ToneNeutral, RequiresActive: true},
	ActivityKudosReceived:    {Tone: TonePositive, QuotaGated: true, RequiresActive: true},
	ActivityWtfReceived:      {Tone: ToneNegative, QuotaGated: true, RequiresActive: true},
	ActivityProcessViolation: {Tone: ToneNegative},
	ActivityQualityIssue:     {Tone: ToneNegative},
	ActivityImported:         {Tone: ToneNeutral},
	ActivityScoreAdjustment:  {Tone: ToneNeutral},
	ActivityDelegation:       {Tone: ToneNeutral, RequiresActive: true},
	ActivityPeerReview:       {Tone: ToneNeutral, RequiresActive: true},
}

// Kind returns the handling rules for t and whether t is a known type.
func (t ActivityType) Kind() (ActivityKind, bool) {
	k, ok := activityKinds[t]
	return k, ok
}

// Valid reports whether t is a recognised activity type.
func (t ActivityType) Valid() bool {
	_, ok := activityKinds[t]
	return ok
}

// ActivityTypes returns every recognised type in a stable order.
func ActivityTypes() []ActivityType {
	return []ActivityType{
		ActivityTaskAssigned, ActivityTaskCompleted, ActivityTaskFailed,
		ActivityKudosReceived, ActivityWtfReceived, ActivityProcessViolation,
		ActivityQualityIssue, ActivityImported, ActivityScoreAdjustment,
		ActivityDelegation, ActivityPeerReview,
	}
}
