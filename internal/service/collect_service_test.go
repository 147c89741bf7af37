package service

import "testing"

func TestEligibleForCollection(t *testing.T) {
	if !EligibleForCollection(d("10"), d("10")) {
		t.Error("恰好达到阈值应可归集")
	}
	if !EligibleForCollection(d("100.5"), d("10")) {
		t.Error("超过阈值应可归集")
	}
	if EligibleForCollection(d("9.99"), d("10")) {
		t.Error("低于阈值不应归集")
	}
	if EligibleForCollection(d("0"), d("0")) {
		t.Error("零余额不应归集")
	}
}

func TestNeedsGasTopup(t *testing.T) {
	if !NeedsGasTopup(d("10"), d("15")) {
		t.Error("原生币余额低于阈值应补 gas")
	}
	if NeedsGasTopup(d("15"), d("15")) {
		t.Error("恰好达到阈值不需要补 gas")
	}
	if NeedsGasTopup(d("20"), d("15")) {
		t.Error("余额充足不需要补 gas")
	}
}
