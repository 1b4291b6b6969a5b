package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"ncat/logger"
	"ncat/transport/tls"
)

func main() {
	var hosts = flag.String("hosts", "localhost,127.0.0.1", "逗号分隔的主机名或IP")
	var dir = flag.String("o", ".", "输出目录")
	flag.Parse()

	bundle, err := tls.GenerateSelfSigned(strings.Split(*hosts, ",")...)
	if err != nil {
		logger.Log.Fatalf("生成证书失败: %v", err)
	}

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		logger.Log.Fatalf("创建输出目录失败: %v", err)
	}
	ca, cert, key, err := bundle.WriteFiles(*dir)
	if err != nil {
		logger.Log.Fatalf("写入证书失败: %v", err)
	}

	fmt.Printf("CA:   %s\n", ca)
	fmt.Printf("证书: %s\n", cert)
	fmt.Printf("私钥: %s\n", key)
	fmt.Println()
	fmt.Printf("  ncat tls-listen -cert %s -key %s 127.0.0.1 8443\n", cert, key)
	fmt.Printf("  ncat tls-connect -ca %s 127.0.0.1 8443\n", ca)
}
