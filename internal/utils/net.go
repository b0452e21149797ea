package utils

import "net"

// GetLocalIP 返回本机第一个非回环 IPv4 地址，失败时退化为 "unknown"。
// 仅用于拼接 Kafka client.id 之类的标识，不参与业务逻辑。
func GetLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "unknown"
}
