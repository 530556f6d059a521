// Package events encodes pool events as ABI logs for the journal and decodes
// them back for aggregation.
package events

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityEngine/internal/model"
)

// Codec converts between model.PoolEvent and model.LogRecord.
type Codec struct {
	poolABI     abi.ABI
	topicToName map[string]model.EventKind
}

// NewCodec builds a codec over the pool event ABI.
func NewCodec() (*Codec, error) {
	poolABI, err := PoolEventsABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	topicToName := make(map[string]model.EventKind, len(poolABI.Events))
	for _, kind := range []model.EventKind{
		model.EventInitialized,
		model.EventDeposit,
		model.EventWithdraw,
		model.EventSwap,
		model.EventLockChanged,
	} {
		event, ok := poolABI.Events[string(kind)]
		if !ok {
			return nil, fmt.Errorf("abi missing event %s", kind)
		}
		topicToName[strings.ToLower(event.ID.Hex())] = kind
	}

	return &Codec{poolABI: poolABI, topicToName: topicToName}, nil
}

// Topic0 returns the signature hash of an event kind.
func (c *Codec) Topic0(kind model.EventKind) (common.Hash, bool) {
	event, ok := c.poolABI.Events[string(kind)]
	if !ok {
		return common.Hash{}, false
	}
	return event.ID, true
}

// CanDecode checks if the topic0 is a pool event.
func (c *Codec) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := c.topicToName[strings.ToLower(topic0)]
	return ok
}

// Encode packs an event into a log emitted by the pool account. The owner (or
// authority) is the single indexed topic.
func (c *Codec) Encode(ev model.PoolEvent) (model.LogRecord, error) {
	event, ok := c.poolABI.Events[string(ev.Kind)]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}

	values, err := nonIndexedValues(ev)
	if err != nil {
		return model.LogRecord{}, err
	}
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", event.Name, err)
	}

	return model.LogRecord{
		Sequence:  ev.Sequence,
		Address:   ev.Pool.Hex(),
		Topics:    []string{event.ID.Hex(), common.BytesToHash(ev.Owner.Bytes()).Hex()},
		Data:      hexutil.Encode(data),
		Timestamp: ev.Timestamp,
	}, nil
}

func nonIndexedValues(ev model.PoolEvent) ([]interface{}, error) {
	r := ev.Reserves
	switch ev.Kind {
	case model.EventInitialized:
		return []interface{}{ev.AssetX, ev.AssetY, ev.Seed, ev.FeeBps, ev.LPShareID}, nil
	case model.EventDeposit, model.EventWithdraw:
		return []interface{}{ev.AmountX, ev.AmountY, ev.LPAmount, r.ReserveX, r.ReserveY, r.LPSupply}, nil
	case model.EventSwap:
		switch ev.Direction {
		case model.XToY, model.YToX:
		default:
			return nil, fmt.Errorf("swap event without direction")
		}
		return []interface{}{ev.Direction == model.XToY, ev.AmountIn, ev.AmountOut, ev.Fee, r.ReserveX, r.ReserveY, r.LPSupply}, nil
	case model.EventLockChanged:
		return []interface{}{ev.Locked, r.ReserveX, r.ReserveY, r.LPSupply}, nil
	default:
		return nil, fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}
}

// Decode converts a journal log back into a PoolEvent.
func (c *Codec) Decode(log model.LogRecord) (model.PoolEvent, error) {
	if len(log.Topics) == 0 {
		return model.PoolEvent{}, fmt.Errorf("missing topics")
	}
	kind, ok := c.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return model.PoolEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return model.PoolEvent{}, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	event := c.poolABI.Events[string(kind)]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PoolEvent{}, err
	}
	indexed := make(map[string]interface{})
	indexedArgs := indexedArguments(event.Inputs)
	if err := abi.ParseTopicsIntoMap(indexed, indexedArgs, indexedTopics); err != nil {
		return model.PoolEvent{}, fmt.Errorf("parse topics: %w", err)
	}
	owner, err := asAddress(indexed[indexedArgs[0].Name])
	if err != nil {
		return model.PoolEvent{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PoolEvent{}, err
	}

	ev := model.PoolEvent{
		Kind:      kind,
		Pool:      common.HexToAddress(log.Address),
		Sequence:  log.Sequence,
		Timestamp: log.Timestamp,
		Owner:     owner,
	}
	f := fields{values: values}

	switch kind {
	case model.EventInitialized:
		ev.AssetX = f.addr("assetX")
		ev.AssetY = f.addr("assetY")
		ev.Seed = f.u64("seed")
		ev.FeeBps = f.u16("feeBps")
		ev.LPShareID = f.addr("lpShare")
	case model.EventDeposit, model.EventWithdraw:
		ev.AmountX = f.u64("amountX")
		ev.AmountY = f.u64("amountY")
		ev.LPAmount = f.u64("lpAmount")
	case model.EventSwap:
		ev.Direction = model.YToX
		if f.flag("xToY") {
			ev.Direction = model.XToY
		}
		ev.AmountIn = f.u64("amountIn")
		ev.AmountOut = f.u64("amountOut")
		ev.Fee = f.u64("fee")
	case model.EventLockChanged:
		ev.Locked = f.flag("locked")
	}
	if kind != model.EventInitialized {
		ev.Reserves = model.ReserveLedger{
			ReserveX: f.u64("reserveX"),
			ReserveY: f.u64("reserveY"),
			LPSupply: f.u64("lpSupply"),
		}
	}
	if f.err != nil {
		return model.PoolEvent{}, fmt.Errorf("decode %s: %w", kind, f.err)
	}
	return ev, nil
}

// fields reads typed values out of an unpacked argument map, keeping the
// first error.
type fields struct {
	values map[string]interface{}
	err    error
}

func (f *fields) get(name string) interface{} {
	v, ok := f.values[name]
	if !ok && f.err == nil {
		f.err = fmt.Errorf("missing field %s", name)
	}
	return v
}

func (f *fields) u64(name string) uint64 {
	v := f.get(name)
	out, ok := v.(uint64)
	if !ok && f.err == nil {
		f.err = fmt.Errorf("field %s: unexpected type %T", name, v)
	}
	return out
}

func (f *fields) u16(name string) uint16 {
	v := f.get(name)
	out, ok := v.(uint16)
	if !ok && f.err == nil {
		f.err = fmt.Errorf("field %s: unexpected type %T", name, v)
	}
	return out
}

func (f *fields) flag(name string) bool {
	v := f.get(name)
	out, ok := v.(bool)
	if !ok && f.err == nil {
		f.err = fmt.Errorf("field %s: unexpected type %T", name, v)
	}
	return out
}

func (f *fields) addr(name string) common.Address {
	out, err := asAddress(f.get(name))
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("field %s: %w", name, err)
	}
	return out
}

func asAddress(v interface{}) (common.Address, error) {
	switch value := v.(type) {
	case common.Address:
		return value, nil
	case *common.Address:
		if value == nil {
			return common.Address{}, fmt.Errorf("nil address")
		}
		return *value, nil
	default:
		return common.Address{}, fmt.Errorf("unexpected address type %T", v)
	}
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) (map[string]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values := make(map[string]interface{})
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
