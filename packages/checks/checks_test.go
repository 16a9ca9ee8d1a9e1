package checks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brivas/sms-validation-bridge/packages/errs"
	"github.com/brivas/sms-validation-bridge/packages/model"
	"github.com/brivas/sms-validation-bridge/packages/onboarding"
)

type fakeSettings struct {
	ints    map[string]int
	bools   map[string]bool
	slices  map[string][]string
	strings map[string]string
}

func (f *fakeSettings) GetInt(_ context.Context, key string, def int) (int, error) {
	if v, ok := f.ints[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettings) GetBool(_ context.Context, key string, def bool) (bool, error) {
	if v, ok := f.bools[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettings) GetString(_ context.Context, key, def string) (string, error) {
	if v, ok := f.strings[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettings) GetStringSlice(_ context.Context, key string, def []string) ([]string, error) {
	if v, ok := f.slices[key]; ok {
		return v, nil
	}
	return def, nil
}

type fakeCounters struct {
	count       int
	blacklisted bool
}

func (f *fakeCounters) Increment(_ context.Context, _, _, _ string) (int, error) {
	f.count++
	return f.count, nil
}

func (f *fakeCounters) Blacklist(_ context.Context, _ model.BlacklistRecord) error {
	f.blacklisted = true
	return nil
}

type fakeMembership struct {
	members map[string]bool
}

func (f *fakeMembership) Contains(_ context.Context, localMobile string) (bool, error) {
	return f.members[localMobile], nil
}

type fakeOnboarding struct {
	records map[string]model.OnboardingRecord
}

func (f *fakeOnboarding) Status(_ context.Context, mobileNumber string) (model.OnboardingRecord, error) {
	rec, ok := f.records[mobileNumber]
	if !ok {
		return model.OnboardingRecord{}, onboarding.ErrNotFound
	}
	return rec, nil
}

func TestBlacklistCheckPassesUnderThreshold(t *testing.T) {
	deps := Deps{
		Settings: &fakeSettings{ints: map[string]int{"blacklist_threshold": 5}},
		Counters: &fakeCounters{count: 0},
	}
	fn := blacklistCheck(deps)

	result, err := fn(context.Background(), Input{Message: model.InputMessage{SenderNumber: "919876543210"}})
	if err != nil {
		t.Fatalf("blacklistCheck: %v", err)
	}
	if result != model.Pass {
		t.Errorf("blacklistCheck = %v, want Pass", result)
	}
}

func TestBlacklistCheckFailsOverThreshold(t *testing.T) {
	counters := &fakeCounters{count: 5}
	deps := Deps{
		Settings: &fakeSettings{ints: map[string]int{"blacklist_threshold": 5}},
		Counters: counters,
	}
	fn := blacklistCheck(deps)

	result, err := fn(context.Background(), Input{Message: model.InputMessage{SenderNumber: "919876543210"}})
	if err != nil {
		t.Fatalf("blacklistCheck: %v", err)
	}
	if result != model.Fail {
		t.Errorf("blacklistCheck = %v, want Fail", result)
	}
	if !counters.blacklisted {
		t.Error("expected Blacklist to be recorded once threshold exceeded")
	}
}

func TestDuplicateCheck(t *testing.T) {
	deps := Deps{Membership: &fakeMembership{members: map[string]bool{"9876543210": true}}}
	fn := duplicateCheck(deps)

	result, err := fn(context.Background(), Input{LocalMobile: "9876543210"})
	if err != nil {
		t.Fatalf("duplicateCheck: %v", err)
	}
	if result != model.Fail {
		t.Errorf("duplicateCheck(member) = %v, want Fail", result)
	}

	result, err = fn(context.Background(), Input{LocalMobile: "0000000000"})
	if err != nil {
		t.Fatalf("duplicateCheck: %v", err)
	}
	if result != model.Pass {
		t.Errorf("duplicateCheck(non-member) = %v, want Pass", result)
	}
}

func TestForeignNumberCheckSkippedWhenDisabled(t *testing.T) {
	deps := Deps{Settings: &fakeSettings{}}
	fn := foreignNumberCheck(deps)

	result, err := fn(context.Background(), Input{CountryCode: "1"})
	if err != nil {
		t.Fatalf("foreignNumberCheck: %v", err)
	}
	if result != model.Skipped {
		t.Errorf("foreignNumberCheck = %v, want Skipped", result)
	}
}

func TestForeignNumberCheckEnforcesAllowList(t *testing.T) {
	deps := Deps{Settings: &fakeSettings{
		bools:  map[string]bool{"foreign_number_validation": true},
		slices: map[string][]string{"allowed_country_codes": {"91"}},
	}}
	fn := foreignNumberCheck(deps)

	result, err := fn(context.Background(), Input{CountryCode: "91"})
	if err != nil || result != model.Pass {
		t.Errorf("foreignNumberCheck(allowed) = %v, %v", result, err)
	}

	result, err = fn(context.Background(), Input{CountryCode: "1"})
	if err != nil || result != model.Fail {
		t.Errorf("foreignNumberCheck(disallowed) = %v, %v", result, err)
	}
}

func TestHeaderHashCheck(t *testing.T) {
	rec := model.OnboardingRecord{
		MobileNumber: "919876543210",
		Hash:         "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90",
		IsActive:     true,
	}

	deps := Deps{
		Settings:   &fakeSettings{},
		Onboarding: &fakeOnboarding{records: map[string]model.OnboardingRecord{"919876543210": rec}},
	}
	fn := headerHashCheck(deps)

	msg := model.InputMessage{SenderNumber: "+919876543210", SMSMessage: "ONBOARD:A1B2C3D4E5F60718293A4B5C6D7E8F90A1B2C3D4E5F60718293A4B5C6D7E8F90"}
	result, err := fn(context.Background(), Input{Message: msg})
	if err != nil {
		t.Fatalf("headerHashCheck: %v", err)
	}
	if result != model.Pass {
		t.Errorf("headerHashCheck(matching, case-insensitive) = %v, want Pass", result)
	}

	msg.SMSMessage = "just a regular message"
	result, err = fn(context.Background(), Input{Message: msg})
	if err != nil {
		t.Fatalf("headerHashCheck: %v", err)
	}
	if result != model.Fail {
		t.Errorf("headerHashCheck(no prefix) = %v, want Fail", result)
	}
}

func TestHeaderHashCheckHonorsPermittedHeaders(t *testing.T) {
	rec := model.OnboardingRecord{
		Hash:     "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90",
		IsActive: true,
	}
	deps := Deps{
		Settings:   &fakeSettings{strings: map[string]string{"permitted_headers": "VERIFY, ACTIVATE"}},
		Onboarding: &fakeOnboarding{records: map[string]model.OnboardingRecord{"919876543210": rec}},
	}
	fn := headerHashCheck(deps)

	msg := model.InputMessage{
		SenderNumber: "+919876543210",
		SMSMessage:   "VERIFY:a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90",
	}
	result, err := fn(context.Background(), Input{Message: msg})
	if err != nil || result != model.Pass {
		t.Errorf("headerHashCheck(configured header) = %v, %v, want Pass", result, err)
	}

	// The legacy ONBOARD literal is only accepted when it is itself listed
	// in permitted_headers — it is not an implicit, always-valid header.
	msg.SMSMessage = "ONBOARD:a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	result, err = fn(context.Background(), Input{Message: msg})
	if err != nil || result != model.Fail {
		t.Errorf("headerHashCheck(ONBOARD not in permitted_headers) = %v, %v, want Fail", result, err)
	}
}

func TestMobileCheck(t *testing.T) {
	deps := Deps{Onboarding: &fakeOnboarding{records: map[string]model.OnboardingRecord{
		"919876543210": {IsActive: true},
	}}}
	fn := mobileCheck(deps)

	result, err := fn(context.Background(), Input{Message: model.InputMessage{SenderNumber: "+919876543210"}})
	if err != nil || result != model.Pass {
		t.Errorf("mobileCheck(active) = %v, %v", result, err)
	}

	result, err = fn(context.Background(), Input{Message: model.InputMessage{SenderNumber: "12345"}})
	if err != nil || result != model.Fail {
		t.Errorf("mobileCheck(too short) = %v, %v", result, err)
	}
}

func TestTimeWindowCheck(t *testing.T) {
	onboardedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	deps := Deps{
		Settings:   &fakeSettings{ints: map[string]int{"validation_time_window": 300}},
		Onboarding: &fakeOnboarding{records: map[string]model.OnboardingRecord{"919876543210": {RequestTimestamp: onboardedAt}}},
	}
	fn := timeWindowCheck(deps)

	within := model.InputMessage{SenderNumber: "+919876543210", ReceivedTimestamp: onboardedAt.Add(100 * time.Second)}
	result, err := fn(context.Background(), Input{Message: within})
	if err != nil || result != model.Pass {
		t.Errorf("timeWindowCheck(within window) = %v, %v", result, err)
	}

	late := model.InputMessage{SenderNumber: "+919876543210", ReceivedTimestamp: onboardedAt.Add(400 * time.Second)}
	result, err = fn(context.Background(), Input{Message: late})
	if err != nil || result != model.Fail {
		t.Errorf("timeWindowCheck(after window) = %v, %v", result, err)
	}

	early := model.InputMessage{SenderNumber: "+919876543210", ReceivedTimestamp: onboardedAt.Add(-time.Second)}
	result, err = fn(context.Background(), Input{Message: early})
	if err != nil || result != model.Fail {
		t.Errorf("timeWindowCheck(before onboarding) = %v, %v", result, err)
	}
}

func TestRegistryResolveUnknownCheck(t *testing.T) {
	r := NewRegistry(Deps{})
	_, err := r.Resolve("not_a_real_check")
	if !errors.Is(err, errs.UnknownCheck) {
		t.Errorf("Resolve(unknown) err = %v, want wrapping UnknownCheck", err)
	}
}

