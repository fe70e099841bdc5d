package vaulterr_test

import (
	"errors"
	"testing"

	"github.com/jonathan-robertson/strongvault/vaulterr"
)

func TestErrorIs(t *testing.T) {
	var err error = vaulterr.ErrBufferTooSmall

	if !errors.Is(err, vaulterr.ErrBufferTooSmall) {
		t.Fatal("expected errors.Is to match same sentinel")
	}
	if errors.Is(err, vaulterr.ErrDataNotFound) {
		t.Fatal("did not expect errors.Is to match a different sentinel")
	}
}

func TestErrorMessage(t *testing.T) {
	err := vaulterr.New(vaulterr.Unknown, "something broke")
	if err.Error() != "something broke" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestErrorCodesMatchTable(t *testing.T) {
	cases := map[vaulterr.Code]uint16{
		vaulterr.NoErrorCode:                       0x00,
		vaulterr.Unknown:                           0x01,
		vaulterr.AlreadyInitialized:                0x02,
		vaulterr.NotInitialized:                    0x03,
		vaulterr.NoAvailableHeapMemory:              0x04,
		vaulterr.MemoryIsFixed:                      0x05,
		vaulterr.DataStillExposed:                   0x06,
		vaulterr.NullPointer:                        0x07,
		vaulterr.BadPointer:                         0x08,
		vaulterr.SizeIsZero:                         0x09,
		vaulterr.DataNotFound:                       0x0A,
		vaulterr.BufferTooSmall:                     0x0B,
		vaulterr.NoStrongPasswordStored:              0x0C,
		vaulterr.CipherNotInTheRightState:            0x0D,
		vaulterr.StrongPasswordEntryAlreadyStarted:   0x0E,
		vaulterr.StrongPasswordEntryNotStarted:       0x0F,
		vaulterr.StrongPasswordEntryFull:             0x10,
		vaulterr.UnableToMeetPasswordRequirements:    0x11,
		vaulterr.PasswordExceedsSupportedLength:      0x12,
		vaulterr.Timeout:                             0x13,
		vaulterr.NotSupported:                        0x14,
	}

	for code, want := range cases {
		if uint16(code) != want {
			t.Errorf("code %v: got 0x%02X, want 0x%02X", code, uint16(code), want)
		}
	}
}
