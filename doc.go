/*
Package kittygfx encodes commands of the Kitty terminal graphics protocol and queries
the terminal for protocol support and window geometry.

Commands are described with a Builder, validated once by Build, and turned into
escape sequences by Serialize. Payloads are base64 encoded and split into frames of
at most 4096 encoded bytes; only the first frame carries the control data.

Main features:

  - Typed commands for transmit, display, delete, animation and query actions
  - Validation of field combinations against the action at build time
  - Lazy, chunked serialization with the m=1 / m=0 continuation convention
  - Protocol support and window size queries in raw mode with a bounded timeout
  - Tmux passthrough support
  - Bubbletea integration

Building and sending a command:

	cmd, err := kittygfx.NewBuilder().
	    Action(kittygfx.TransmitAndDisplay).
	    Format(kittygfx.PNG).
	    ImageID(7).
	    Quiet(kittygfx.QuietAll).
	    Build()
	if err != nil {
	    log.Fatal(err)
	}

	frames, err := kittygfx.Serialize(cmd, pngBytes)
	if err != nil {
	    log.Fatal(err)
	}
	frames.WriteTo(os.Stdout)

Shortcuts:

	kittygfx.SerializeAll(kittygfx.DeleteAll(), nil)     // a=d,d=a
	kittygfx.SerializeAll(kittygfx.DeleteByImageID(7), nil) // a=d,d=I,i=7
	kittygfx.SerializeAll(kittygfx.Place(7, 20, 10), nil)   // a=p,i=7,c=20,r=10

Displaying images:

	d := kittygfx.NewImageDisplay(os.Stdout)
	d.DisplayPNGFile("image.png")
	d.ClearAll()

Querying the terminal:

	if kittygfx.CheckProtocolSupport() {
	    ws, err := kittygfx.GetWindowSize()
	    if err == nil {
	        cols, rows := ws.CellsForImage(800, 600)
	        fmt.Println(cols, rows)
	    }
	}

A Querier works on any Terminal, which makes it testable without a real tty. Queries
share the terminal with the rest of the process: do not run two at once.
*/
package kittygfx
