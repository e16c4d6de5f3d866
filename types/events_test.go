package types

import "testing"

func TestEvent_KindDiscriminators(t *testing.T) {
	cases := []struct {
		ev   Event
		want EventKind
	}{
		{ProcessStart{Version: "0.5.1"}, KindProcessStart},
		{RequirementsFile{Path: "requirements.txt"}, KindRequirementsFile},
		{PythonVersion{Version: "3.11.9"}, KindPythonVersion},
		{ResolverDecision{PackageID: 3}, KindResolverDecision},
		{DependencyAdded{Name: "torch"}, KindDependencyAdded},
		{ResolutionDone{Count: 12}, KindResolutionDone},
		{PrepareBatch{Total: 5}, KindPrepareBatch},
		{DownloadPrepare{Name: "torch"}, KindDownloadPrepare},
		{TransferHeaders{StreamID: 7}, KindTransferHeaders},
		{TransferData{StreamID: 7}, KindTransferData},
		{TransferSettings{MaxFrameSize: 16384}, KindTransferSettings},
		{PackagesPrepared{Count: 5}, KindPackagesPrepared},
		{PackagesAudited{Count: 12}, KindPackagesAudited},
		{InstallStart{Wheels: 5}, KindInstallStart},
		{InstallComplete{Count: 5}, KindInstallComplete},
		{PackageChanged{Name: "torch"}, KindPackageChanged},
		{ErrorLine{Message: "boom"}, KindError},
		{WarningLine{Message: "careful"}, KindWarning},
		{Unknown{Module: "uv_client"}, KindUnknown},
	}

	seen := make(map[EventKind]bool, len(cases))
	for _, tc := range cases {
		if got := tc.ev.Kind(); got != tc.want {
			t.Errorf("%T.Kind() = %q, want %q", tc.ev, got, tc.want)
		}
		seen[tc.ev.Kind()] = true
	}

	// Every declared kind must have a carrier type above.
	if len(seen) != 19 {
		t.Errorf("covered %d kinds, want 19", len(seen))
	}
}
