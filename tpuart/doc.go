// Package tpuart implements a KNX twisted-pair data link layer on top of a
// TP-UART style bus transceiver (NCN5120 and compatibles) attached through a
// byte-oriented serial channel.
//
// The driver is polled: every Poll reads at most one leading byte from the
// chip, classifies it against a prioritized table of indication patterns and
// runs the matching handler, which may read the rest of the indication.
// Received telegrams are rewritten into the canonical extended layout and
// handed to a TelegramSink.
//
// Send writes a telegram and keeps polling until the chip reports the
// outcome. Telegrams from other devices arriving meanwhile are held back in a
// small fixed-capacity queue and delivered once the outcome is known.
//
// Typical use:
//
//	port, _ := transport.NewSerialPort("/dev/ttyAMA0")
//	drv, _ := tpuart.NewDriver(port, tpuart.StaticDevice(addr), sink,
//		tpuart.WithSendTimeout(3*time.Second),
//	)
//	if err := drv.Enable(ctx); err != nil {
//		return err
//	}
//	go drv.Run(ctx)
//	ok, err := drv.Submit(ctx, telegram)
package tpuart
