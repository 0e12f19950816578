package torque

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewListenerWhitelist(t *testing.T) {
	l := newListener(true, nil, 0)
	assert.Nil(t, l.TCPListener)
	assert.Nil(t, l.allowedPROXYRelayerIPNets)

	l = newListener(true, []string{
		"0.0.0.0", "::", "127.0.0.1", "127.0.0.1/32", "::1", "::1/128",
	}, 0)
	assert.Len(t, l.allowedPROXYRelayerIPNets, 6)
}

func TestListenerListen(t *testing.T) {
	l := newListener(false, nil, 0)
	assert.NoError(t, l.listen("localhost:0"))
	assert.NoError(t, l.Close())

	l = newListener(false, nil, 0)
	assert.Error(t, l.listen(":-1"))
}

func TestListenerAcceptWithoutProxy(t *testing.T) {
	l := newListener(false, nil, 0)
	require := assert.New(t)
	require.NoError(l.listen("localhost:0"))
	defer l.Close()

	cc, err := net.Dial("tcp", l.Addr().String())
	require.NoError(err)
	defer cc.Close()

	c, err := l.Accept()
	require.NoError(err)
	_, isProxyConn := c.(*proxyConn)
	require.False(isProxyConn)
}

func TestListenerAcceptWithProxyWhitelistExcluded(t *testing.T) {
	l := newListener(true, []string{"127.0.0.2"}, 0)
	require := assert.New(t)
	require.NoError(l.listen("localhost:0"))
	defer l.Close()

	cc, err := net.Dial("tcp", l.Addr().String())
	require.NoError(err)
	defer cc.Close()

	c, err := l.Accept()
	require.NoError(err)
	_, isProxyConn := c.(*proxyConn)
	require.False(isProxyConn, "peer not in whitelist should not be wrapped")
}

func TestPROXYConnReadsV1Header(t *testing.T) {
	l := newListener(true, nil, 100*time.Millisecond)
	require := assert.New(t)
	require.NoError(l.listen("localhost:0"))
	defer l.Close()

	cc, err := net.Dial("tcp", l.Addr().String())
	require.NoError(err)
	require.NoError(cc.SetDeadline(time.Now().Add(time.Second)))

	c, err := l.Accept()
	require.NoError(err)
	pc, ok := c.(*proxyConn)
	require.True(ok)

	go func() {
		cc.Write([]byte("PROXY TCP4 127.0.0.2 127.0.0.3 8081 8082\r\nhi"))
		cc.Close()
	}()

	b := make([]byte, 2)
	n, err := pc.Read(b)
	require.NoError(err)
	require.Equal(2, n)
	require.Equal("hi", string(b))

	na := pc.RemoteAddr()
	require.Equal("127.0.0.2:8081", na.String())

	la := pc.LocalAddr()
	require.Equal("127.0.0.3:8082", la.String())
}

func TestPROXYConnPassesThroughNonProxyTraffic(t *testing.T) {
	l := newListener(true, nil, 100*time.Millisecond)
	require := assert.New(t)
	require.NoError(l.listen("localhost:0"))
	defer l.Close()

	cc, err := net.Dial("tcp", l.Addr().String())
	require.NoError(err)
	require.NoError(cc.SetDeadline(time.Now().Add(time.Second)))

	c, err := l.Accept()
	require.NoError(err)
	pc := c.(*proxyConn)

	go func() {
		cc.Write([]byte("plain"))
		cc.Close()
	}()

	b := make([]byte, 5)
	n, err := pc.Read(b)
	require.NoError(err)
	require.Equal(5, n)
	require.Equal("plain", string(b))
}

func TestPROXYConnReadHeaderRejectsMalformed(t *testing.T) {
	l := newListener(true, nil, 100*time.Millisecond)
	require := assert.New(t)
	require.NoError(l.listen("localhost:0"))
	defer l.Close()

	cc, err := net.Dial("tcp", l.Addr().String())
	require.NoError(err)
	require.NoError(cc.SetDeadline(time.Now().Add(time.Second)))

	c, err := l.Accept()
	require.NoError(err)
	pc := c.(*proxyConn)

	go func() {
		cc.Write([]byte("PROXY UDP4 127.0.0.2 127.0.0.3 8081 8082\r\n"))
		cc.Close()
	}()

	pc.readHeader()
	require.Nil(pc.srcAddr)
	require.Error(pc.readHeaderError)
}
