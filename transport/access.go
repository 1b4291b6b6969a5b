package transport

import (
	"net"
	"net/netip"
	"strings"

	"github.com/metacubex/bart"
)

// AccessList holds the source prefixes a listener accepts. A nil list
// allows everyone.
type AccessList struct {
	table bart.Table[struct{}]
	size  int
}

// NewAccessList accepts CIDR prefixes or bare addresses.
func NewAccessList(entries []string) (*AccessList, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	list := new(AccessList)
	for _, entry := range entries {
		pfx, err := parsePrefix(strings.TrimSpace(entry))
		if err != nil {
			return nil, AddressError("allow", entry, err)
		}
		list.table.Insert(pfx.Masked(), struct{}{})
		list.size++
	}
	return list, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (l *AccessList) Allowed(addr net.Addr) bool {
	if l == nil {
		return true
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return false
	}
	_, ok := l.table.Lookup(ap.Addr().Unmap())
	return ok
}

func (l *AccessList) Len() int {
	if l == nil {
		return 0
	}
	return l.size
}
