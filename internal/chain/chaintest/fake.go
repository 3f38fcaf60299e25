// Package chaintest 提供内存版 chain.Backend，按合约地址和方法 selector 返回 ABI 编码结果。
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// CallFunc 只读方法处理函数，args 为解码后的入参，返回值按 ABI outputs 编码
type CallFunc func(args []interface{}) ([]interface{}, error)

// TxFunc 交易处理函数；返回 error 时回执 status=0
type TxFunc func(from common.Address, value *big.Int, args []interface{}) ([]*types.Log, error)

// SentCall 已发送交易的解码视图
type SentCall struct {
	From   common.Address
	To     *common.Address
	Method string
	Args   []interface{}
	Value  *big.Int
	Hash   common.Hash
}

type methodKey struct {
	addr     common.Address
	selector [4]byte
}

type boundMethod struct {
	method *abi.Method
	call   CallFunc
	tx     TxFunc
}

// FakeBackend 满足 chain.Backend
type FakeBackend struct {
	mu sync.Mutex

	chainID   *big.Int
	block     uint64
	blockTime uint64
	balances  map[common.Address]*big.Int
	code      map[common.Address][]byte
	methods   map[methodKey]*boundMethod
	estimate  map[methodKey]error
	nonces    map[common.Address]uint64
	receipts  map[common.Hash]*types.Receipt
	// lastRevert 最近一次链上回滚的原因，供重放调用返回
	lastRevert error
	logs      []types.Log
	sent      []SentCall

	// Calls 每个 RPC 方法被调用的次数
	Calls map[string]int
	// ErrorOnNext 下一次调用对应 RPC 方法时返回该错误（用后即删）
	ErrorOnNext map[string]error
	// CallCount 每个 "地址:方法" 的 eth_call 次数
	CallCount map[string]int
	Closed    bool
}

// NewFakeBackend 创建 fake 节点
func NewFakeBackend(chainID int64) *FakeBackend {
	return &FakeBackend{
		chainID:     big.NewInt(chainID),
		block:       1000,
		blockTime:   1_700_000_000,
		balances:    make(map[common.Address]*big.Int),
		code:        make(map[common.Address][]byte),
		methods:     make(map[methodKey]*boundMethod),
		estimate:    make(map[methodKey]error),
		nonces:      make(map[common.Address]uint64),
		receipts:    make(map[common.Hash]*types.Receipt),
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
		CallCount:   make(map[string]int),
	}
}

func (f *FakeBackend) bind(addr common.Address, parsed *abi.ABI, method string) *boundMethod {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: ABI 中没有方法 %s", method))
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	key := methodKey{addr: addr, selector: sel}
	bm, ok := f.methods[key]
	if !ok {
		mm := m
		bm = &boundMethod{method: &mm}
		f.methods[key] = bm
	}
	if _, ok := f.code[addr]; !ok {
		f.code[addr] = []byte{0x60, 0x80}
	}
	return bm
}

// Handle 注册只读方法
func (f *FakeBackend) Handle(addr common.Address, parsed *abi.ABI, method string, fn CallFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bind(addr, parsed, method).call = fn
}

// Returns 注册返回固定值的只读方法
func (f *FakeBackend) Returns(addr common.Address, parsed *abi.ABI, method string, values ...interface{}) {
	f.Handle(addr, parsed, method, func([]interface{}) ([]interface{}, error) { return values, nil })
}

// Fails 注册总是失败的只读方法
func (f *FakeBackend) Fails(addr common.Address, parsed *abi.ABI, method string, err error) {
	f.Handle(addr, parsed, method, func([]interface{}) ([]interface{}, error) { return nil, err })
}

// OnTx 注册交易处理
func (f *FakeBackend) OnTx(addr common.Address, parsed *abi.ABI, method string, fn TxFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bind(addr, parsed, method).tx = fn
}

// FailEstimate 让某个交易在 gas 估算阶段失败（模拟 revert 或钱包拒绝）
func (f *FakeBackend) FailEstimate(addr common.Address, parsed *abi.ABI, method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bm := f.bind(addr, parsed, method)
	var sel [4]byte
	copy(sel[:], bm.method.ID)
	f.estimate[methodKey{addr: addr, selector: sel}] = err
}

// ClearEstimateFailure 取消 FailEstimate
func (f *FakeBackend) ClearEstimateFailure(addr common.Address, parsed *abi.ABI, method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sel [4]byte
	copy(sel[:], parsed.Methods[method].ID)
	delete(f.estimate, methodKey{addr: addr, selector: sel})
}

// SetBalance 设置原生币余额
func (f *FakeBackend) SetBalance(addr common.Address, v *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = new(big.Int).Set(v)
}

// SetBlock 设置最新区块高度与时间
func (f *FakeBackend) SetBlock(number, timestamp uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = number
	f.blockTime = timestamp
}

// AddLog 追加一条日志
func (f *FakeBackend) AddLog(l types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
}

// Sent 已发送的交易
func (f *FakeBackend) Sent() []SentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentCall(nil), f.sent...)
}

// SentMethods 已发送交易的方法名序列
func (f *FakeBackend) SentMethods() []string {
	var out []string
	for _, c := range f.Sent() {
		out = append(out, c.Method)
	}
	return out
}

func (f *FakeBackend) takeErr(name string) error {
	f.Calls[name]++
	if err, ok := f.ErrorOnNext[name]; ok {
		delete(f.ErrorOnNext, name)
		return err
	}
	return nil
}

func (f *FakeBackend) lookup(to *common.Address, data []byte) (*boundMethod, methodKey, bool) {
	if to == nil || len(data) < 4 {
		return nil, methodKey{}, false
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	key := methodKey{addr: *to, selector: sel}
	bm, ok := f.methods[key]
	return bm, key, ok
}

func (f *FakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("ChainID"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(f.chainID), nil
}

// SetChainID 模拟节点切换网络
func (f *FakeBackend) SetChainID(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainID = big.NewInt(id)
}

func (f *FakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("BlockNumber"); err != nil {
		return 0, err
	}
	return f.block, nil
}

func (f *FakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("HeaderByNumber"); err != nil {
		return nil, err
	}
	return &types.Header{Number: new(big.Int).SetUint64(f.block), Time: f.blockTime}, nil
}

func (f *FakeBackend) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("BalanceAt"); err != nil {
		return nil, err
	}
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeBackend) CodeAt(ctx context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("CodeAt"); err != nil {
		return nil, err
	}
	return f.code[account], nil
}

func (f *FakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	if err := f.takeErr("CallContract"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	// 带区块号的调用只用于重放 revert 原因
	if block != nil && f.lastRevert != nil {
		err := f.lastRevert
		f.mu.Unlock()
		return nil, err
	}
	bm, _, ok := f.lookup(msg.To, msg.Data)
	if !ok || bm.call == nil {
		f.mu.Unlock()
		// 未注册的方法：和链上一样返回空数据
		return nil, nil
	}
	f.CallCount[msg.To.Hex()+":"+bm.method.Name]++
	f.mu.Unlock()

	args, err := bm.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	out, err := bm.call(args)
	if err != nil {
		return nil, err
	}
	return bm.method.Outputs.Pack(out...)
}

// CallCountFor 某地址某方法的 eth_call 次数
func (f *FakeBackend) CallCountFor(addr common.Address, method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CallCount[addr.Hex()+":"+method]
}

func (f *FakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("FilterLogs"); err != nil {
		return nil, err
	}
	var out []types.Log
	for _, l := range f.logs {
		if len(q.Addresses) > 0 && !containsAddr(q.Addresses, l.Address) {
			continue
		}
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 {
			if len(l.Topics) == 0 || !containsHash(q.Topics[0], l.Topics[0]) {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *FakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("PendingNonceAt"); err != nil {
		return 0, err
	}
	return f.nonces[account], nil
}

func (f *FakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("SuggestGasPrice"); err != nil {
		return nil, err
	}
	return big.NewInt(1_000_000_000), nil
}

func (f *FakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("EstimateGas"); err != nil {
		return 0, err
	}
	if _, key, ok := f.lookup(msg.To, msg.Data); ok {
		if err := f.estimate[key]; err != nil {
			return 0, err
		}
	}
	return 100_000, nil
}

func (f *FakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	if err := f.takeErr("SendTransaction"); err != nil {
		f.mu.Unlock()
		return err
	}
	from, err := types.Sender(types.NewEIP155Signer(f.chainID), tx)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	nonce := f.nonces[from]
	f.nonces[from] = nonce + 1
	f.block++

	call := SentCall{From: from, To: tx.To(), Value: tx.Value(), Hash: tx.Hash()}
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.block),
	}
	if tx.To() == nil {
		call.Method = "<deploy>"
		receipt.ContractAddress = crypto.CreateAddress(from, nonce)
		f.code[receipt.ContractAddress] = tx.Data()
		f.sent = append(f.sent, call)
		f.receipts[tx.Hash()] = receipt
		f.mu.Unlock()
		return nil
	}

	bm, _, ok := f.lookup(tx.To(), tx.Data())
	if ok {
		call.Method = bm.method.Name
		if args, err := bm.method.Inputs.Unpack(tx.Data()[4:]); err == nil {
			call.Args = args
		}
	}
	f.sent = append(f.sent, call)
	f.mu.Unlock()

	var logs []*types.Log
	if ok && bm.tx != nil {
		var txErr error
		logs, txErr = bm.tx(from, tx.Value(), call.Args)
		if txErr != nil {
			receipt.Status = types.ReceiptStatusFailed
			f.mu.Lock()
			f.lastRevert = txErr
			f.mu.Unlock()
		}
	}
	for i, l := range logs {
		l.TxHash = tx.Hash()
		l.BlockNumber = receipt.BlockNumber.Uint64()
		l.Index = uint(i)
	}
	receipt.Logs = logs

	f.mu.Lock()
	f.receipts[tx.Hash()] = receipt
	f.mu.Unlock()
	return nil
}

func (f *FakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("TransactionReceipt"); err != nil {
		return nil, err
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *FakeBackend) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
}

func containsAddr(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}

// RevertError 模拟节点返回的 revert 错误（code 3，data 为 Error(string) 编码）
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string { return "execution reverted: " + e.Reason }

func (e *RevertError) ErrorCode() int { return 3 }

func (e *RevertError) ErrorData() interface{} {
	strT, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: strT}}.Pack(e.Reason)
	sel := crypto.Keccak256([]byte("Error(string)"))[:4]
	return hexutil.Encode(append(sel, packed...))
}

// Revert 构造 revert 错误
func Revert(reason string) error { return &RevertError{Reason: reason} }

// RejectError 模拟钱包拒绝（EIP-1193 4001）
type RejectError struct{}

func (RejectError) Error() string { return "User denied transaction signature" }

func (RejectError) ErrorCode() int { return 4001 }

// ErrRPC 通用 RPC 故障
var ErrRPC = errors.New("chaintest: rpc unavailable")

// EventLog 构造事件日志，indexed 参数放入 topics
func EventLog(addr common.Address, parsed *abi.ABI, event string, indexed []common.Hash, data ...interface{}) *types.Log {
	ev, ok := parsed.Events[event]
	if !ok {
		panic(fmt.Sprintf("chaintest: ABI 中没有事件 %s", event))
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(fmt.Sprintf("chaintest: 打包事件 %s 失败: %v", event, err))
	}
	topics := append([]common.Hash{ev.ID}, indexed...)
	return &types.Log{Address: addr, Topics: topics, Data: packed}
}
