// Package protocols defines the bridging-protocol plugin interface and the
// shared eligibility rules every protocol inherits.
package protocols

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
)

// Protocol is the per-bridge behavior plugged into the relay pipeline. The
// pipeline itself stays protocol-agnostic; everything bridge-specific lives
// behind this interface.
type Protocol interface {
	// Name returns the protocol name matching intent source tags.
	Name() string

	// IsEligible reports whether the relayer should attempt this intent.
	IsEligible(intent *models.Intent) bool

	// CalculateRelayerFee computes the fee earned by filling the intent, in
	// input token base units. A negative fee is possible and means the fill
	// would lose money.
	CalculateRelayerFee(ctx context.Context, intent *models.Intent) (*big.Int, error)

	// RequiresSettlement reports whether a filled intent needs an explicit
	// settlement transaction.
	RequiresSettlement() bool

	// Settle claims repayment for a single filled intent.
	Settle(ctx context.Context, intent *models.Intent) error

	// SettleBatch claims repayment for several filled intents at once.
	SettleBatch(ctx context.Context, intents []*models.Intent) error
}

// Registry resolves protocols by intent source tag.
type Registry struct {
	protocols map[string]Protocol
}

// NewRegistry creates an empty protocol registry
func NewRegistry() *Registry {
	return &Registry{protocols: make(map[string]Protocol)}
}

// Register adds a protocol to the registry
func (r *Registry) Register(p Protocol) {
	r.protocols[strings.ToLower(p.Name())] = p
}

// Lookup returns the protocol for an intent source tag, case-insensitive.
func (r *Registry) Lookup(source string) (Protocol, error) {
	p, ok := r.protocols[strings.ToLower(source)]
	if !ok {
		return nil, fmt.Errorf("no protocol registered for source %s", source)
	}
	return p, nil
}

// Names returns the registered protocol names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.protocols))
	for name := range r.protocols {
		names = append(names, name)
	}
	return names
}

// Base implements the protocol-independent rules: deadline, served chain
// pairs, token support and amount bounds. Protocols embed it and layer their
// own checks on top.
type Base struct {
	name string
	cfg  *config.ProtocolConfig
}

// NewBase creates the shared rule set for a protocol
func NewBase(name string, cfg *config.ProtocolConfig) *Base {
	return &Base{name: name, cfg: cfg}
}

// Name returns the protocol name
func (b *Base) Name() string {
	return b.name
}

// Config returns the protocol configuration
func (b *Base) Config() *config.ProtocolConfig {
	return b.cfg
}

// IsEligible applies the shared eligibility rules.
func (b *Base) IsEligible(intent *models.Intent) bool {
	if intent.Expired(time.Now()) {
		return false
	}

	srcServed := false
	for _, src := range b.cfg.SrcChains {
		if src.ChainID == intent.Input.ChainID {
			srcServed = true
			break
		}
	}
	if !srcServed {
		return false
	}

	dst, err := b.cfg.DstChain(intent.Output.ChainID)
	if err != nil {
		return false
	}

	token, err := dst.Token(common.HexToAddress(intent.Output.TokenAddress))
	if err != nil {
		return false
	}

	amount, err := intent.InputAmount()
	if err != nil {
		return false
	}
	if min, ok := new(big.Int).SetString(token.MinAmount, 10); ok && amount.Cmp(min) < 0 {
		return false
	}
	if max, ok := new(big.Int).SetString(token.MaxAmount, 10); ok && amount.Cmp(max) > 0 {
		return false
	}
	return true
}

// CalculateRelayerFee returns a zero fee; protocols override this.
func (b *Base) CalculateRelayerFee(_ context.Context, _ *models.Intent) (*big.Int, error) {
	return big.NewInt(0), nil
}

// RequiresSettlement reports that no settlement is needed by default.
func (b *Base) RequiresSettlement() bool {
	return false
}

// Settle is a no-op by default.
func (b *Base) Settle(_ context.Context, _ *models.Intent) error {
	return nil
}

// SettleBatch is a no-op by default.
func (b *Base) SettleBatch(_ context.Context, _ []*models.Intent) error {
	return nil
}
