package transportparam

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xtls/quicaccept/internal/qerr"
)

func serverParams(t *testing.T) *TransportParameters {
	t.Helper()
	p, err := NewBuilder(RoleServer).
		InitialSourceConnectionID([]byte{1, 2, 3, 4}).
		OriginalDestinationConnectionID([]byte{9, 9, 9, 9}).
		MaxIdleTimeout(30000).
		MaxUDPPayloadSize(1452).
		InitialMaxData(1 << 20).
		InitialMaxStreamDataBidiLocal(65536).
		InitialMaxStreamDataBidiRemote(65536).
		InitialMaxStreamDataUni(65536).
		InitialMaxStreamsBidi(100).
		InitialMaxStreamsUni(3).
		AckDelayExponent(3).
		MaxAckDelay(25).
		ActiveConnectionIDLimit(4).
		StatelessResetToken([16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}).
		MaxDatagramFrameSize(0).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestRoundTripServerParams(t *testing.T) {
	p := serverParams(t)
	wire, err := Marshal(p, RoleServer)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(wire, RoleServer)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(p, got, cmp.AllowUnexported(Optional[uint64]{}, Optional[[16]byte]{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestClientCannotEmitServerOnlyParams(t *testing.T) {
	_, err := NewBuilder(RoleClient).
		InitialSourceConnectionID([]byte{1}).
		OriginalDestinationConnectionID([]byte{1}).
		Build()
	if !qerr.Is(err, qerr.TransportParameterError) {
		t.Fatalf("expected TRANSPORT_PARAMETER_ERROR, got %v", err)
	}
}

func TestUnmarshalRejectsServerOnlyFromClient(t *testing.T) {
	p, err := NewBuilder(RoleServer).
		InitialSourceConnectionID([]byte{1}).
		OriginalDestinationConnectionID([]byte{2}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wire, err := Marshal(p, RoleServer)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, err = Unmarshal(wire, RoleClient)
	if !qerr.Is(err, qerr.TransportParameterError) {
		t.Fatalf("expected TRANSPORT_PARAMETER_ERROR, got %v", err)
	}
}

func TestUnmarshalRejectsDuplicateID(t *testing.T) {
	p, err := NewBuilder(RoleClient).InitialSourceConnectionID([]byte{1}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wire, err := Marshal(p, RoleClient)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	dup := append(append([]byte{}, wire...), wire...)
	_, err = Unmarshal(dup, RoleClient)
	if !qerr.Is(err, qerr.TransportParameterError) {
		t.Fatalf("expected TRANSPORT_PARAMETER_ERROR for duplicate id, got %v", err)
	}
}

func TestDefaultsAppliedWhenAbsent(t *testing.T) {
	p, err := NewBuilder(RoleClient).InitialSourceConnectionID([]byte{1}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.AckDelayExponentOrDefault() != DefaultAckDelayExponent {
		t.Errorf("ack_delay_exponent default = %d, want %d", p.AckDelayExponentOrDefault(), DefaultAckDelayExponent)
	}
	if p.MaxAckDelayOrDefault() != DefaultMaxAckDelayMS {
		t.Errorf("max_ack_delay default = %d, want %d", p.MaxAckDelayOrDefault(), DefaultMaxAckDelayMS)
	}
	if p.ActiveConnectionIDLimitOrDefault() != DefaultActiveConnectionIDLimit {
		t.Errorf("active_connection_id_limit default = %d, want %d", p.ActiveConnectionIDLimitOrDefault(), DefaultActiveConnectionIDLimit)
	}
}

func TestPreferredAddressRoundTrip(t *testing.T) {
	pa := PreferredAddress{
		IPv4:         netip.MustParseAddrPort("203.0.113.1:4433"),
		ConnectionID: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	p, err := NewBuilder(RoleServer).
		InitialSourceConnectionID([]byte{1}).
		PreferredAddress(pa).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wire, err := Marshal(p, RoleServer)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(wire, RoleServer)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.PreferredAddress == nil || !got.PreferredAddress.HasIPv4() {
		t.Fatalf("expected round-tripped IPv4 preferred address, got %+v", got.PreferredAddress)
	}
	if got.PreferredAddress.IPv4 != pa.IPv4 {
		t.Errorf("IPv4 = %v, want %v", got.PreferredAddress.IPv4, pa.IPv4)
	}
}

func TestPreferredAddressRequiresOneFamily(t *testing.T) {
	_, err := NewBuilder(RoleServer).
		InitialSourceConnectionID([]byte{1}).
		PreferredAddress(PreferredAddress{}).
		Build()
	if !qerr.Is(err, qerr.TransportParameterError) {
		t.Fatalf("expected TRANSPORT_PARAMETER_ERROR, got %v", err)
	}
}

func TestVersionInformationRoundTrip(t *testing.T) {
	p, err := NewBuilder(RoleClient).
		InitialSourceConnectionID([]byte{1}).
		VersionInformation(VersionInformation{Chosen: 0x00000001, Others: []uint32{0x6b3343cf}}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wire, err := Marshal(p, RoleClient)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(wire, RoleClient)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.VersionInformation == nil || got.VersionInformation.Chosen != 0x00000001 {
		t.Fatalf("unexpected version information: %+v", got.VersionInformation)
	}
	if len(got.VersionInformation.Others) != 1 || got.VersionInformation.Others[0] != 0x6b3343cf {
		t.Fatalf("unexpected others: %+v", got.VersionInformation.Others)
	}
}

func TestExtensionFraming(t *testing.T) {
	p, err := NewBuilder(RoleClient).InitialSourceConnectionID([]byte{1, 2}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wire, err := Marshal(p, RoleClient)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	ext, err := WrapExtension(ExtensionCodepointV1, wire)
	if err != nil {
		t.Fatalf("WrapExtension: %v", err)
	}
	codepoint, payload, err := UnwrapExtension(ext)
	if err != nil {
		t.Fatalf("UnwrapExtension: %v", err)
	}
	if codepoint != ExtensionCodepointV1 {
		t.Errorf("codepoint = %x, want %x", codepoint, ExtensionCodepointV1)
	}
	if string(payload) != string(wire) {
		t.Errorf("payload mismatch")
	}
}

func TestDiscardParameterIgnoredOnParse(t *testing.T) {
	p, err := NewBuilder(RoleClient).
		InitialSourceConnectionID([]byte{1}).
		Discard(64).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wire, err := Marshal(p, RoleClient)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(wire, RoleClient)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.InitialSourceConnectionID) != 1 {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}
