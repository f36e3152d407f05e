// Package abidecode turns a raw EventLog1 log into the flat,
// name-keyed record the rest of the pipeline works with. EventLog1 is
// the emitter's single generic event: a schema-polymorphic payload of
// seven keyed (name, value) / (name, value[]) maps. This package
// decodes it strictly per EVM ABI rules and then projects it into a
// map[string]interface{}, so payload additions in future emitter
// versions pass through without a version gate.
package abidecode

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EventSignature is the keccak256 of the emitter's EventLog1 canonical
// signature.
var EventSignature = common.HexToHash("0x137a44067c8961cd7e1d876f4754a5a3a75989b4552f1843fc69c3b372def160")

var (
	positionIncreaseHash = crypto.Keccak256Hash([]byte(string(EventPositionIncrease)))
	positionDecreaseHash = crypto.Keccak256Hash([]byte(string(EventPositionDecrease)))
)

// Event names the pipeline keeps; re-declared here (rather than
// imported from the root package) to keep this package import-free of
// the domain model; it only produces flat records.
const (
	EventPositionIncrease = "PositionIncrease"
	EventPositionDecrease = "PositionDecrease"
)

// keyValue mirrors the emitter's (name, value) tuple shape for a single
// ABI type category; category.ArrayItems reuses it as keyValue[[]T] for
// the (name, value[]) shape.
type keyValue[T any] struct {
	Key   string
	Value T
}

type category[T any] struct {
	Items      []keyValue[T]
	ArrayItems []keyValue[[]T]
}

// eventLogData is EventUtils.EventLogData: seven disjoint-type
// categories, each a (pairs, arrays) pair. The shape is fixed by the
// emitter's ABI; go-ethereum's UnpackIntoInterface matches the tuple
// components to these fields by name.
type eventLogData struct {
	AddressItems category[common.Address]
	UintItems    category[*big.Int]
	IntItems     category[*big.Int]
	BoolItems    category[bool]
	Bytes32Items category[[32]byte]
	BytesItems   category[[]byte]
	StringItems  category[string]
}

type eventLog1Payload struct {
	MsgSender common.Address
	Account   common.Address
	EventData eventLogData
}

// LoadEmitterABI parses the emitter ABI JSON artifact once at startup.
// Callers should treat a non-nil error as a startup abort.
func LoadEmitterABI(path string) (abi.ABI, error) {
	f, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to open emitter ABI %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := abi.JSON(f)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse emitter ABI %s: %w", path, err)
	}
	if _, ok := parsed.Events["EventLog1"]; !ok {
		return abi.ABI{}, fmt.Errorf("emitter ABI %s has no EventLog1 event", path)
	}
	return parsed, nil
}

// Decoded is the result of decoding and flattening one log. EventName
// is empty when the log is neither PositionIncrease nor
// PositionDecrease; the caller skips those.
type Decoded struct {
	TransactionHash string
	BlockNumber     uint64
	MsgSender       string
	Account         string
	EventName       string
	Topic1          string
	Fields          map[string]interface{}
}

// Decode decodes a single EventLog1 log and flattens its payload. It
// returns ok=false (no error) when the log's event-name topic matches
// neither PositionIncrease nor PositionDecrease.
func Decode(contractABI abi.ABI, log types.Log) (Decoded, bool, error) {
	if len(log.Topics) < 3 {
		return Decoded{}, false, fmt.Errorf("log %s has %d topics, want at least 3", log.TxHash.Hex(), len(log.Topics))
	}

	eventNameHash := log.Topics[1]
	var eventName string
	switch eventNameHash {
	case positionIncreaseHash:
		eventName = EventPositionIncrease
	case positionDecreaseHash:
		eventName = EventPositionDecrease
	default:
		return Decoded{}, false, nil
	}

	var payload eventLog1Payload
	if err := contractABI.UnpackIntoInterface(&payload, "EventLog1", log.Data); err != nil {
		return Decoded{}, false, fmt.Errorf("failed to unpack EventLog1 data for tx %s: %w", log.TxHash.Hex(), err)
	}

	fields := make(map[string]interface{})
	flattenCategory(fields, payload.EventData.AddressItems, formatAddress)
	flattenCategory(fields, payload.EventData.UintItems, formatBigInt)
	flattenCategory(fields, payload.EventData.IntItems, formatBigInt)
	flattenCategory(fields, payload.EventData.BoolItems, formatBool)
	flattenCategory(fields, payload.EventData.Bytes32Items, formatBytes32)
	flattenCategory(fields, payload.EventData.BytesItems, formatBytes)
	flattenCategory(fields, payload.EventData.StringItems, formatString)

	return Decoded{
		TransactionHash: log.TxHash.Hex(),
		BlockNumber:     log.BlockNumber,
		MsgSender:       strings.ToLower(payload.MsgSender.Hex()),
		Account:         strings.ToLower(payload.Account.Hex()),
		EventName:       eventName,
		Topic1:          log.Topics[2].Hex(),
		Fields:          fields,
	}, true, nil
}

// flattenCategory walks one category's items and arrayItems, dropping
// empty values: nil, empty list, and empty string never make it into
// the flat record.
func flattenCategory[T any](out map[string]interface{}, c category[T], format func(T) interface{}) {
	for _, kv := range c.Items {
		v := format(kv.Value)
		if isEmptyValue(v) {
			continue
		}
		out[kv.Key] = v
	}
	for _, kv := range c.ArrayItems {
		if len(kv.Value) == 0 {
			continue
		}
		arr := make([]interface{}, 0, len(kv.Value))
		for _, item := range kv.Value {
			arr = append(arr, format(item))
		}
		out[kv.Key] = arr
	}
}

func isEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

func formatAddress(a common.Address) interface{} {
	return strings.ToLower(a.Hex())
}

func formatBigInt(v *big.Int) interface{} {
	if v == nil {
		return nil
	}
	return v
}

func formatBool(v bool) interface{} {
	return v
}

func formatBytes32(v [32]byte) interface{} {
	zero := [32]byte{}
	if v == zero {
		return ""
	}
	return "0x" + common.Bytes2Hex(v[:])
}

func formatBytes(v []byte) interface{} {
	if len(v) == 0 {
		return ""
	}
	return "0x" + common.Bytes2Hex(v)
}

func formatString(v string) interface{} {
	return v
}

// MarshalDegraded stringifies every value in fields for the indexer's
// degraded-persistence path.
func MarshalDegraded(fields map[string]interface{}) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case *big.Int:
			out[k] = t.String()
		case []interface{}:
			b, err := json.Marshal(t)
			if err == nil {
				out[k] = string(b)
			}
		default:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	return out
}
