package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseConditionsSingleObject(t *testing.T) {
	conds, err := ParseConditions([]byte(`{"type":"resource_ownership","resource_type":"order"}`))
	require.NoError(t, err)
	require.Len(t, conds, 1)
	require.Equal(t, ConditionResourceOwnership, conds[0].Kind)
	require.Equal(t, "order", conds[0].ResourceType)
}

func TestParseConditionsArray(t *testing.T) {
	raw := []byte(`[
		{"type":"resource_ownership","resource_type":"order"},
		{"type":"time_restriction","allowed_hours":[9,17],"allowed_days":[1,2,3,4,5]}
	]`)
	conds, err := ParseConditions(raw)
	require.NoError(t, err)
	require.Len(t, conds, 2)
	require.Equal(t, ConditionTimeRestriction, conds[1].Kind)
	require.Equal(t, &HourRange{Start: 9, End: 17}, conds[1].AllowedHours)
	require.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, conds[1].AllowedDays)
}

func TestParseConditionsEmptyPayload(t *testing.T) {
	conds, err := ParseConditions(nil)
	require.NoError(t, err)
	require.Nil(t, conds)
}

func TestParseConditionsRejectsUnknownType(t *testing.T) {
	_, err := ParseConditions([]byte(`{"type":"ip_allowlist","cidr":"10.0.0.0/8"}`))
	require.ErrorIs(t, err, ErrUnknownCondition)
}

func TestParseConditionsRejectsBadShapes(t *testing.T) {
	cases := []string{
		`{"type":"resource_ownership"}`,
		`{"type":"time_restriction"}`,
		`{"type":"time_restriction","allowed_hours":[17,9]}`,
		`{"type":"time_restriction","allowed_hours":[-1,10]}`,
		`{"type":"time_restriction","allowed_hours":[0,24]}`,
		`{"type":"time_restriction","allowed_days":[7]}`,
		`not json`,
	}
	for _, raw := range cases {
		_, err := ParseConditions([]byte(raw))
		require.Error(t, err, raw)
	}
}

func evaluatorAt(t *testing.T, at time.Time) *Evaluator {
	t.Helper()
	return NewEvaluator(func() time.Time { return at })
}

func TestEvaluateHourBoundariesInclusive(t *testing.T) {
	cond := Condition{Kind: ConditionTimeRestriction, AllowedHours: &HourRange{Start: 9, End: 17}}
	day := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		hour    int
		granted bool
	}{
		{8, false},
		{9, true},
		{12, true},
		{17, true},
		{18, false},
	}
	for _, tc := range cases {
		ev := evaluatorAt(t, day.Add(time.Duration(tc.hour)*time.Hour))
		dec, err := ev.Evaluate(context.Background(), []Condition{cond}, Request{UserID: "u"})
		require.NoError(t, err)
		require.Equal(t, tc.granted, dec.Granted, "hour %d", tc.hour)
		if !tc.granted {
			require.Equal(t, "outside allowed hours (09-17)", dec.Reason)
		}
	}
}

func TestEvaluateAllowedDays(t *testing.T) {
	cond := Condition{Kind: ConditionTimeRestriction, AllowedDays: []time.Weekday{time.Monday, time.Friday}}

	monday := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, time.March, 2, 12, 0, 0, 0, time.UTC)

	dec, err := evaluatorAt(t, monday).Evaluate(context.Background(), []Condition{cond}, Request{UserID: "u"})
	require.NoError(t, err)
	require.True(t, dec.Granted)

	dec, err = evaluatorAt(t, sunday).Evaluate(context.Background(), []Condition{cond}, Request{UserID: "u"})
	require.NoError(t, err)
	require.False(t, dec.Granted)
	require.Equal(t, "outside allowed days", dec.Reason)
}

func TestEvaluateOwnershipBeforeTime(t *testing.T) {
	// Outside the time window AND not the owner: the ownership denial wins
	// because ownership conditions are checked first.
	ev := evaluatorAt(t, time.Date(2025, time.March, 4, 23, 0, 0, 0, time.UTC))
	ev.RegisterOwnership("order", staticOwner{owner: "someone-else"})
	conds := []Condition{
		{Kind: ConditionTimeRestriction, AllowedHours: &HourRange{Start: 9, End: 17}},
		{Kind: ConditionResourceOwnership, ResourceType: "order"},
	}
	dec, err := ev.Evaluate(context.Background(), conds, Request{UserID: "u", ResourceID: "o-1"})
	require.NoError(t, err)
	require.False(t, dec.Granted)
	require.Equal(t, "resource ownership required", dec.Reason)
}

func TestEvaluateUnregisteredResourceTypeDenies(t *testing.T) {
	ev := evaluatorAt(t, time.Now())
	cond := Condition{Kind: ConditionResourceOwnership, ResourceType: "invoices"}
	dec, err := ev.Evaluate(context.Background(), []Condition{cond}, Request{UserID: "u", ResourceID: "i-1"})
	require.NoError(t, err)
	require.False(t, dec.Granted)
}

func TestEvaluateNoConditionsGrants(t *testing.T) {
	ev := evaluatorAt(t, time.Now())
	dec, err := ev.Evaluate(context.Background(), nil, Request{UserID: "u"})
	require.NoError(t, err)
	require.True(t, dec.Granted)
}

func TestConditionSummary(t *testing.T) {
	require.Equal(t, "owns order", Condition{Kind: ConditionResourceOwnership, ResourceType: "order"}.Summary())
	require.Equal(t, "within allowed time", Condition{Kind: ConditionTimeRestriction}.Summary())
}
