////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package profile

import (
	"testing"

	"gitlab.com/sslcaudit/sslcaudit/certauthority"
	"gitlab.com/sslcaudit/sslcaudit/options"
)

func newTestAuthority(t *testing.T) *certauthority.Authority {
	t.Helper()
	bag, err := certauthority.NewFileBag(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBag: %v", err)
	}
	t.Cleanup(func() { _ = bag.Close() })
	return certauthority.NewAuthority(bag)
}

func TestBuildPlan_DefaultCN_NoUserCA(t *testing.T) {
	a := newTestAuthority(t)
	o := options.Defaults()

	plan, err := BuildPlan(o, a)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	// One CN (the default), self-signed + directly-signed + 3 IMCA variants.
	if len(plan) != 5 {
		t.Fatalf("want 5 profiles, got %d: %+v", len(plan), plan)
	}
	if _, ok := plan[0].Spec.(SelfSigned); !ok {
		t.Errorf("want first profile to be SelfSigned, got %T", plan[0].Spec)
	}
}

func TestBuildPlan_NoDefaultCN_EmptyPlanForCNClass(t *testing.T) {
	a := newTestAuthority(t)
	o := options.Defaults()
	o.NoDefaultCN = true

	plan, err := BuildPlan(o, a)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan) != 0 {
		t.Fatalf("want an empty plan with no CN resolved, got %d profiles", len(plan))
	}
}

func TestBuildPlan_UserCN_TakesPriorityOverDefault(t *testing.T) {
	a := newTestAuthority(t)
	o := options.Defaults()
	o.UserCN = "custom.example.com"

	plan, err := BuildPlan(o, a)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	// custom.example.com plus the always-included default CN = 2 CNs × 5.
	if len(plan) != 10 {
		t.Fatalf("want 10 profiles (2 CNs), got %d", len(plan))
	}
	ss, ok := plan[0].Spec.(SelfSigned)
	if !ok || ss.CN != "custom.example.com" {
		t.Errorf("want first profile SelfSigned(custom.example.com), got %+v", plan[0].Spec)
	}
}

func TestBuildPlan_SSLProtoModule_OnlyWhenSelected(t *testing.T) {
	a := newTestAuthority(t)
	o := options.Defaults()
	o.Module = "sslproto"

	plan, err := BuildPlan(o, a)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan) != len(protoSweepGrid()) {
		t.Fatalf("want %d sslproto profiles, got %d", len(protoSweepGrid()), len(plan))
	}
	for _, p := range plan {
		if _, ok := p.Spec.(SSLProtoSpec); !ok {
			t.Errorf("want only SSLProtoSpec profiles, got %T", p.Spec)
		}
	}
}

func TestBuildPlan_IsDeterministicForSameOptions(t *testing.T) {
	a1 := newTestAuthority(t)
	a2 := newTestAuthority(t)
	o := options.Defaults()

	plan1, err := BuildPlan(o, a1)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	plan2, err := BuildPlan(o, a2)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	if len(plan1) != len(plan2) {
		t.Fatalf("plans differ in length: %d vs %d", len(plan1), len(plan2))
	}
	for i := range plan1 {
		if plan1[i].Spec.String() != plan2[i].Spec.String() {
			t.Errorf("plan spec %d differs: %s vs %s", i, plan1[i].Spec.String(), plan2[i].Spec.String())
		}
	}
}
