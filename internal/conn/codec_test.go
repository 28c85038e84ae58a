package conn

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
)

func TestCodecName(t *testing.T) {
	require.Equal(t, "keyspan", codec{}.Name())
}

func TestCodecJSONFallback(t *testing.T) {
	in := &api.CommitRequest{
		Session:       "sessions/1",
		TransactionID: []byte("tx-1"),
		Mutations: []api.Mutation{
			{Insert: &api.Write{
				Table:   "t",
				Columns: []string{"id"},
				Values:  [][]any{{"k"}},
			}},
		},
	}

	data, err := codec{}.Marshal(in)
	require.NoError(t, err)

	out := new(api.CommitRequest)
	require.NoError(t, codec{}.Unmarshal(data, out))
	require.Equal(t, in.Session, out.Session)
	require.Equal(t, in.TransactionID, out.TransactionID)
	require.Len(t, out.Mutations, 1)
	require.Equal(t, "t", out.Mutations[0].Insert.Table)
}

func TestCodecProtoFastPath(t *testing.T) {
	in := wrapperspb.String("hello")

	data, err := codec{}.Marshal(in)
	require.NoError(t, err)

	out := new(wrapperspb.StringValue)
	require.NoError(t, codec{}.Unmarshal(data, out))
	require.Equal(t, "hello", out.GetValue())
}

func TestCodecUnmarshalGarbage(t *testing.T) {
	err := codec{}.Unmarshal([]byte("{not json"), new(api.Session))
	require.Error(t, err)
}
