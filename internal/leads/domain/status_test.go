package domain

import "testing"

func TestCanTransitionForwardMoves(t *testing.T) {
	allowed := [][2]string{
		{StatusNew, StatusContacted},
		{StatusNew, StatusQualified},
		{StatusContacted, StatusProposal},
		{StatusQualified, StatusNegotiating},
		{StatusProposal, StatusWon},
		{StatusNegotiating, StatusWon},
	}
	for _, tc := range allowed {
		if !CanTransition(tc[0], tc[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tc[0], tc[1])
		}
	}
}

func TestCanTransitionWonIsTerminal(t *testing.T) {
	for _, to := range []string{StatusNew, StatusContacted, StatusQualified, StatusProposal, StatusNegotiating, StatusLost} {
		if CanTransition(StatusWon, to) {
			t.Fatalf("won must be terminal, but %s -> %s was allowed", StatusWon, to)
		}
	}
}

func TestCanTransitionLostCanBeReopened(t *testing.T) {
	if !CanTransition(StatusLost, StatusNew) {
		t.Fatal("lost leads must be reopenable as new")
	}
	if CanTransition(StatusLost, StatusWon) {
		t.Fatal("lost leads cannot jump straight to won")
	}
}

func TestCanTransitionEveryNonTerminalStatusCanBeLost(t *testing.T) {
	for _, from := range []string{StatusNew, StatusContacted, StatusQualified, StatusProposal, StatusNegotiating} {
		if !CanTransition(from, StatusLost) {
			t.Fatalf("expected %s -> lost to be allowed", from)
		}
	}
}

func TestCanTransitionRejectsSameStatus(t *testing.T) {
	if CanTransition(StatusContacted, StatusContacted) {
		t.Fatal("a no-op transition is never legal")
	}
}

func TestIsKnownStatus(t *testing.T) {
	if !IsKnownStatus(StatusNegotiating) {
		t.Fatal("negotiating is part of the pipeline")
	}
	if IsKnownStatus("archived") {
		t.Fatal("archived is not a pipeline status")
	}
	if IsKnownStatus("") {
		t.Fatal("empty status is not known")
	}
}
