package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	ironbooknet "ironbook/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange server")
	userID := flag.String("user", "", "user id (compulsory)")
	action := flag.String("action", "place", "action to perform: [place, cancel, modify, log]")

	symbol := flag.String("symbol", "AAPL", "symbol")
	sideStr := flag.String("side", "buy", "order side: buy or sell")
	tifStr := flag.String("tif", "gtc", "time in force: gtc, ioc, fok, gtd")
	price := flag.String("price", "100.00", "limit price")
	quantity := flag.String("qty", "10", "quantity")

	orderID := flag.String("order-id", "", "order id (required for cancel/modify)")
	newPrice := flag.String("new-price", "", "new price (modify only)")
	newQuantity := flag.String("new-qty", "", "new quantity (modify only)")

	flag.Parse()

	if *userID == "" {
		fmt.Println("Error: -user is required.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *userID)

	go readReports(conn)

	switch strings.ToLower(*action) {
	case "place":
		side, err := parseSide(*sideStr)
		if err != nil {
			log.Fatal(err)
		}
		p, err := decimal.NewFromString(*price)
		if err != nil {
			log.Fatalf("invalid price: %v", err)
		}
		q, err := decimal.NewFromString(*quantity)
		if err != nil {
			log.Fatalf("invalid quantity: %v", err)
		}
		if err := sendNewOrder(conn, *symbol, side, parseTIF(*tifStr), p, q, *userID); err != nil {
			log.Fatalf("failed to place order: %v", err)
		}
		fmt.Printf("-> sent %s order: %s %s @ %s\n", strings.ToUpper(*sideStr), *symbol, *quantity, *price)

	case "cancel":
		if *orderID == "" {
			log.Fatal("Error: -order-id is required for cancel")
		}
		if err := sendCancelOrder(conn, *orderID); err != nil {
			log.Fatalf("failed to cancel order: %v", err)
		}
		fmt.Printf("-> sent cancel for order %s\n", *orderID)

	case "modify":
		if *orderID == "" {
			log.Fatal("Error: -order-id is required for modify")
		}
		var np, nq *decimal.Decimal
		if *newPrice != "" {
			v, err := decimal.NewFromString(*newPrice)
			if err != nil {
				log.Fatalf("invalid new-price: %v", err)
			}
			np = &v
		}
		if *newQuantity != "" {
			v, err := decimal.NewFromString(*newQuantity)
			if err != nil {
				log.Fatalf("invalid new-qty: %v", err)
			}
			nq = &v
		}
		if err := sendModifyOrder(conn, *orderID, np, nq); err != nil {
			log.Fatalf("failed to modify order: %v", err)
		}
		fmt.Printf("-> sent modify for order %s\n", *orderID)

	case "log":
		if err := sendLogBook(conn); err != nil {
			log.Fatalf("failed to send log request: %v", err)
		}
		fmt.Println("-> sent log request")

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (press Ctrl+C to exit)")
	select {}
}

func parseSide(s string) (byte, error) {
	switch strings.ToLower(s) {
	case "buy", "bid":
		return 0, nil
	case "sell", "ask":
		return 1, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}

func parseTIF(s string) byte {
	switch strings.ToLower(s) {
	case "ioc":
		return 1
	case "fok":
		return 2
	case "gtd":
		return 3
	default:
		return 0 // gtc
	}
}

func putLenPrefixed(buf []byte, s string) []byte {
	head := make([]byte, 2)
	binary.BigEndian.PutUint16(head, uint16(len(s)))
	buf = append(buf, head...)
	return append(buf, []byte(s)...)
}

func sendNewOrder(conn net.Conn, symbol string, side, tif byte, price, quantity decimal.Decimal, userID string) error {
	buf := make([]byte, 0, 128)
	buf = binary.BigEndian.AppendUint16(buf, uint16(ironbooknet.NewOrder))
	buf = putLenPrefixed(buf, symbol)
	buf = append(buf, side, tif)
	buf = putLenPrefixed(buf, price.String())
	buf = putLenPrefixed(buf, quantity.String())
	buf = append(buf, 0) // has_expiry = false
	buf = putLenPrefixed(buf, userID)
	_, err := conn.Write(buf)
	return err
}

func sendCancelOrder(conn net.Conn, orderID string) error {
	buf := make([]byte, 0, 64)
	buf = binary.BigEndian.AppendUint16(buf, uint16(ironbooknet.CancelOrder))
	buf = putLenPrefixed(buf, orderID)
	_, err := conn.Write(buf)
	return err
}

func sendModifyOrder(conn net.Conn, orderID string, newPrice, newQuantity *decimal.Decimal) error {
	buf := make([]byte, 0, 96)
	buf = binary.BigEndian.AppendUint16(buf, uint16(ironbooknet.ModifyOrder))
	buf = putLenPrefixed(buf, orderID)

	hasPrice := byte(0)
	if newPrice != nil {
		hasPrice = 1
	}
	hasQuantity := byte(0)
	if newQuantity != nil {
		hasQuantity = 1
	}
	buf = append(buf, hasPrice, hasQuantity)
	if newPrice != nil {
		buf = putLenPrefixed(buf, newPrice.String())
	}
	if newQuantity != nil {
		buf = putLenPrefixed(buf, newQuantity.String())
	}
	_, err := conn.Write(buf)
	return err
}

func sendLogBook(conn net.Conn) error {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(ironbooknet.LogBook))
	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and prints Report messages from the
// server. The wire shape mirrors Report.Serialize: a fixed 10-byte
// head (type, side, unix timestamp) followed by six length-prefixed
// strings (symbol, quantity, price, order_id, counterparty, err).
func readReports(conn net.Conn) {
	for {
		head := make([]byte, 10)
		if _, err := readFull(conn, head); err != nil {
			fmt.Printf("\nconnection lost: %v\n", err)
			os.Exit(0)
		}
		reportType := head[0]
		side := head[1]

		symbol, err := readLenPrefixed(conn)
		if err != nil {
			return
		}
		quantity, err := readLenPrefixed(conn)
		if err != nil {
			return
		}
		price, err := readLenPrefixed(conn)
		if err != nil {
			return
		}
		orderID, err := readLenPrefixed(conn)
		if err != nil {
			return
		}
		counterparty, err := readLenPrefixed(conn)
		if err != nil {
			return
		}
		errStr, err := readLenPrefixed(conn)
		if err != nil {
			return
		}

		switch ironbooknet.ReportMessageType(reportType) {
		case ironbooknet.ErrorReport:
			fmt.Printf("\n[ERROR] %s\n", errStr)
		case ironbooknet.AckReport:
			fmt.Printf("\n[ACK] symbol=%s order_id=%s\n", symbol, orderID)
		default:
			sideStr := "BUY"
			if side == 1 {
				sideStr = "SELL"
			}
			fmt.Printf("\n[EXECUTION] %s %s qty=%s price=%s order_id=%s vs=%s\n",
				sideStr, symbol, quantity, price, orderID, counterparty)
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func readLenPrefixed(conn net.Conn) (string, error) {
	lenBuf := make([]byte, 2)
	if _, err := readFull(conn, lenBuf); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(lenBuf)
	if n == 0 {
		return "", nil
	}
	body := make([]byte, n)
	if _, err := readFull(conn, body); err != nil {
		return "", err
	}
	return string(body), nil
}
