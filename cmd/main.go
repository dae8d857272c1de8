// Command isotp-send is a minimal demonstration of the isotp package over
// a real Linux SocketCAN interface: it opens the interface named by the
// -iface flag (default can0), sends one payload, and prints whatever comes
// back within two seconds.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/christiansandberg/aioisotp"
	"github.com/christiansandberg/aioisotp/canframe"
)

func main() {
	iface := flag.String("iface", "can0", "SocketCAN interface name")
	txID := flag.Uint("tx", 0x7E0, "transmit arbitration id")
	rxID := flag.Uint("rx", 0x7E8, "receive arbitration id")
	flag.Parse()

	adapter, err := canframe.DialSocketCAN(*iface)
	if err != nil {
		log.Fatalf("dial %s: %v", *iface, err)
	}

	logger := logrus.New()
	net := isotp.NewNetwork(canframe.WithLogging(adapter, logger, *iface), isotp.WithLogger(logger))
	defer net.Close()

	conn, err := net.CreateConnection(uint32(*rxID), uint32(*txID), isotp.DefaultConfig())
	if err != nil {
		log.Fatalf("create connection: %v", err)
	}

	if err := conn.Write([]byte{0x22, 0xF1, 0x90}); err != nil {
		log.Fatalf("write: %v", err)
	}

	go func() {
		for {
			data, err := conn.Read()
			if err != nil {
				log.Printf("connection closed: %v", err)
				return
			}
			log.Printf("received % X", data)
		}
	}()

	time.Sleep(2 * time.Second)
}
