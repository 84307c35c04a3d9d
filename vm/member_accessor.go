package vm

import (
	"fmt"

	"github.com/VincentPT/ffscript/memory"
)

// MemberAccessorKind tags one step of a member access chain.
type MemberAccessorKind int

const (
	// AccessContextBase starts the chain at the current frame base.
	AccessContextBase MemberAccessorKind = iota
	// AccessGlobal starts the chain at a fixed address, usually in the
	// program's static region.
	AccessGlobal
	// AccessOffset displaces the running address by a constant.
	AccessOffset
	// AccessDeref replaces the running address with the address stored at
	// it.
	AccessDeref
)

// MemberAccessor is one step of a member access chain. A chain is evaluated
// left to right, threading a running address through each step.
type MemberAccessor struct {
	Kind    MemberAccessorKind
	Address memory.Address
	Offset  int
}

// ContextBaseAccessor returns the chain step selecting the current frame
// base.
func ContextBaseAccessor() MemberAccessor {
	return MemberAccessor{Kind: AccessContextBase}
}

// GlobalAccessor returns the chain step selecting a fixed address.
func GlobalAccessor(addr memory.Address) MemberAccessor {
	return MemberAccessor{Kind: AccessGlobal, Address: addr}
}

// OffsetAccessor returns the chain step adding a constant displacement.
func OffsetAccessor(offset int) MemberAccessor {
	return MemberAccessor{Kind: AccessOffset, Offset: offset}
}

// DerefAccessor returns the chain step following a stored address.
func DerefAccessor() MemberAccessor {
	return MemberAccessor{Kind: AccessDeref}
}

// foldAccessors evaluates a chain to its final address.
func foldAccessors(ctx *Context, accessors []MemberAccessor) (memory.Address, error) {
	addr := memory.Null
	for _, acc := range accessors {
		switch acc.Kind {
		case AccessContextBase:
			addr = memory.TaskAddress(ctx.CurrentOffset())
		case AccessGlobal:
			addr = acc.Address
		case AccessOffset:
			if addr.IsNull() {
				return memory.Null, memory.ErrNullDereference
			}
			addr = addr.Add(acc.Offset)
		case AccessDeref:
			b, err := ctx.mem.Resolve(addr, memory.AddressSize)
			if err != nil {
				return memory.Null, err
			}
			addr = memory.ReadAddress(b)
		default:
			return memory.Null, fmt.Errorf("unknown accessor kind %d", acc.Kind)
		}
	}
	return addr, nil
}

func describeAccessors(accessors []MemberAccessor, lines *[]string) {
	for _, acc := range accessors {
		switch acc.Kind {
		case AccessContextBase:
			*lines = append(*lines, "lea([current_offset()], REGISTER)")
		case AccessGlobal:
			*lines = append(*lines, fmt.Sprintf("lea(0x%x, REGISTER)", uint64(acc.Address)))
		case AccessOffset:
			*lines = append(*lines, fmt.Sprintf("add(REGISTER, %d)", acc.Offset))
		case AccessDeref:
			*lines = append(*lines, "mov([REGISTER], REGISTER)")
		}
	}
}
