package delivery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_Ordering(t *testing.T) {
	req := require.New(t)

	req.True(StatusSent.Advances(StatusUnknown))
	req.True(StatusDelivered.Advances(StatusSent))
	req.True(StatusSeen.Advances(StatusDelivered))
	req.True(StatusSeen.Advances(StatusSent))

	req.False(StatusSent.Advances(StatusSent))
	req.False(StatusDelivered.Advances(StatusSeen))
	req.False(StatusSent.Advances(StatusDelivered))
}

func TestStatus_Text(t *testing.T) {
	req := require.New(t)

	raw, err := json.Marshal(map[string]Status{"status": StatusDelivered})
	req.NoError(err)
	req.JSONEq(`{"status":"delivered"}`, string(raw))

	var decoded struct {
		Status Status `json:"status"`
	}
	req.NoError(json.Unmarshal([]byte(`{"status":"seen"}`), &decoded))
	req.Equal(StatusSeen, decoded.Status)

	req.Error(json.Unmarshal([]byte(`{"status":"read"}`), &decoded))
}

func TestLedger_NeverRegresses(t *testing.T) {
	req := require.New(t)
	ledger := NewLedger()

	req.Equal(StatusUnknown, ledger.Status("m1"))
	req.True(ledger.Apply("m1", StatusSent))
	req.True(ledger.Apply("m1", StatusSeen))

	// A delayed delivered and a duplicate seen leave the display alone
	req.False(ledger.Apply("m1", StatusDelivered))
	req.False(ledger.Apply("m1", StatusSeen))
	req.False(ledger.Apply("m1", StatusSent))
	req.Equal(StatusSeen, ledger.Status("m1"))

	// Other messages are independent
	req.True(ledger.Apply("m2", StatusDelivered))
	req.Equal(StatusDelivered, ledger.Status("m2"))
}
