package kittygfx

import "fmt"

// Action selects the graphics operation a command performs (the `a` key)
type Action int

const (
	TransmitAndDisplay Action = iota // a=T, the protocol default
	TransmitOnly                     // a=t
	Display                          // a=p
	Delete                           // a=d
	AnimationFrame                   // a=f
	AnimationControl                 // a=a
	ComposeFrame                     // a=c
	Query                            // a=q
)

var actionCodes = [...]string{
	TransmitAndDisplay: "T",
	TransmitOnly:       "t",
	Display:            "p",
	Delete:             "d",
	AnimationFrame:     "f",
	AnimationControl:   "a",
	ComposeFrame:       "c",
	Query:              "q",
}

var actionNames = [...]string{
	TransmitAndDisplay: "TransmitAndDisplay",
	TransmitOnly:       "TransmitOnly",
	Display:            "Display",
	Delete:             "Delete",
	AnimationFrame:     "AnimationFrame",
	AnimationControl:   "AnimationControl",
	ComposeFrame:       "ComposeFrame",
	Query:              "Query",
}

func (a Action) valid() bool {
	return a >= TransmitAndDisplay && a <= Query
}

// Code returns the wire value of the action
func (a Action) Code() string {
	if !a.valid() {
		return ""
	}
	return actionCodes[a]
}

func (a Action) String() string {
	if !a.valid() {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// carriesData reports whether the action transmits pixel data to the terminal
func (a Action) carriesData() bool {
	switch a {
	case TransmitOnly, TransmitAndDisplay, AnimationFrame, Query:
		return true
	}
	return false
}

// Format is the pixel data format (the `f` key)
type Format int

const (
	RGB  Format = 24
	RGBA Format = 32
	PNG  Format = 100
)

func (f Format) String() string {
	switch f {
	case RGB:
		return "RGB"
	case RGBA:
		return "RGBA"
	case PNG:
		return "PNG"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// BytesPerPixel returns 3 for RGB, 4 for RGBA and 0 for PNG
func (f Format) BytesPerPixel() int {
	switch f {
	case RGB:
		return 3
	case RGBA:
		return 4
	}
	return 0
}

func (f Format) raw() bool {
	return f == RGB || f == RGBA
}

// Medium is how the payload reaches the terminal (the `t` key)
type Medium int

const (
	Direct       Medium = iota // inline base64 inside the escape code
	File                       // path to a regular file
	TempFile                   // path to a temp file the terminal deletes after reading
	SharedMemory               // name of a POSIX shared memory object
)

func (m Medium) Code() string {
	switch m {
	case Direct:
		return "d"
	case File:
		return "f"
	case TempFile:
		return "t"
	case SharedMemory:
		return "s"
	}
	return ""
}

func (m Medium) String() string {
	switch m {
	case Direct:
		return "Direct"
	case File:
		return "File"
	case TempFile:
		return "TempFile"
	case SharedMemory:
		return "SharedMemory"
	}
	return fmt.Sprintf("Medium(%d)", int(m))
}

// Compression tags the payload encoding (the `o` key). The payload must already be
// compressed by the caller; this package never compresses or decompresses.
type Compression int

const (
	NoCompression Compression = iota
	Zlib                      // o=z, RFC 1950 deflate
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "None"
	case Zlib:
		return "Zlib"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// Quiet controls which responses the terminal suppresses (the `q` key)
type Quiet uint8

const (
	QuietNone Quiet = 0 // terminal sends OK and error responses
	QuietOK   Quiet = 1 // suppress OK responses
	QuietAll  Quiet = 2 // suppress all responses
)

// CursorPolicy decides whether placing an image moves the cursor (the `C` key)
type CursorPolicy int

const (
	MoveCursor CursorPolicy = iota
	DoNotMoveCursor
)

func (p CursorPolicy) String() string {
	if p == DoNotMoveCursor {
		return "DoNotMoveCursor"
	}
	return "MoveCursor"
}

// DeleteKind is the selector part of a delete target (the `d` key)
type DeleteKind int

const (
	DeleteAllPlacements DeleteKind = iota + 1 // d=a
	DeleteByID                                // d=i, image id from the command
	DeleteByPlacement                         // d=i, image id + placement id from the command
	DeleteByNumber                            // d=n, image number from the command
	DeleteAtCursor                            // d=c
	DeleteFrames                              // d=f, animation frames of the image id
	DeleteAtCell                              // d=p, cell (x, y)
	DeleteAtCellWithZIndex                    // d=q, cell (x, y) with z-index z
	DeleteByRange                             // d=r, image ids x through y
	DeleteByColumn                            // d=x, column x
	DeleteByRow                               // d=y, row y
	DeleteByZIndex                            // d=z, z-index z
)

var deleteCodes = map[DeleteKind]byte{
	DeleteAllPlacements:    'a',
	DeleteByID:             'i',
	DeleteByPlacement:      'i',
	DeleteByNumber:         'n',
	DeleteAtCursor:         'c',
	DeleteFrames:           'f',
	DeleteAtCell:           'p',
	DeleteAtCellWithZIndex: 'q',
	DeleteByRange:          'r',
	DeleteByColumn:         'x',
	DeleteByRow:            'y',
	DeleteByZIndex:         'z',
}

// DeleteTarget describes which placements a Delete command removes. FreeData also
// releases the stored image data, which upper-cases the wire letter.
type DeleteTarget struct {
	Kind     DeleteKind
	FreeData bool
	X, Y     int // cell or column/row operands, or the id range for DeleteByRange
	Z        int
}

// Code returns the wire letter for the target, or 0 for an unknown kind
func (t DeleteTarget) Code() byte {
	c, ok := deleteCodes[t.Kind]
	if !ok {
		return 0
	}
	if t.FreeData {
		c -= 'a' - 'A'
	}
	return c
}

func (t DeleteTarget) usesX() bool {
	switch t.Kind {
	case DeleteAtCell, DeleteAtCellWithZIndex, DeleteByRange, DeleteByColumn:
		return true
	}
	return false
}

func (t DeleteTarget) usesY() bool {
	switch t.Kind {
	case DeleteAtCell, DeleteAtCellWithZIndex, DeleteByRange, DeleteByRow:
		return true
	}
	return false
}

func (t DeleteTarget) usesZ() bool {
	return t.Kind == DeleteAtCellWithZIndex || t.Kind == DeleteByZIndex
}

// AllTarget deletes every visible placement
func AllTarget(free bool) DeleteTarget { return DeleteTarget{Kind: DeleteAllPlacements, FreeData: free} }

// IDTarget deletes the placements of the command's image id
func IDTarget(free bool) DeleteTarget { return DeleteTarget{Kind: DeleteByID, FreeData: free} }

// PlacementTarget deletes a single placement of the command's image id
func PlacementTarget(free bool) DeleteTarget {
	return DeleteTarget{Kind: DeleteByPlacement, FreeData: free}
}

// NumberTarget deletes the newest image with the command's image number
func NumberTarget(free bool) DeleteTarget { return DeleteTarget{Kind: DeleteByNumber, FreeData: free} }

// CursorTarget deletes placements intersecting the cursor
func CursorTarget(free bool) DeleteTarget { return DeleteTarget{Kind: DeleteAtCursor, FreeData: free} }

// FramesTarget deletes the animation frames of the command's image id
func FramesTarget(free bool) DeleteTarget { return DeleteTarget{Kind: DeleteFrames, FreeData: free} }

// CellTarget deletes placements intersecting the 1-based cell (x, y)
func CellTarget(x, y int, free bool) DeleteTarget {
	return DeleteTarget{Kind: DeleteAtCell, X: x, Y: y, FreeData: free}
}

// CellZTarget deletes placements intersecting cell (x, y) that have z-index z
func CellZTarget(x, y, z int, free bool) DeleteTarget {
	return DeleteTarget{Kind: DeleteAtCellWithZIndex, X: x, Y: y, Z: z, FreeData: free}
}

// RangeTarget deletes images with ids in [first, last]
func RangeTarget(first, last int, free bool) DeleteTarget {
	return DeleteTarget{Kind: DeleteByRange, X: first, Y: last, FreeData: free}
}

// ColumnTarget deletes placements intersecting column x
func ColumnTarget(x int, free bool) DeleteTarget {
	return DeleteTarget{Kind: DeleteByColumn, X: x, FreeData: free}
}

// RowTarget deletes placements intersecting row y
func RowTarget(y int, free bool) DeleteTarget {
	return DeleteTarget{Kind: DeleteByRow, Y: y, FreeData: free}
}

// ZIndexTarget deletes placements with z-index z
func ZIndexTarget(z int, free bool) DeleteTarget {
	return DeleteTarget{Kind: DeleteByZIndex, Z: z, FreeData: free}
}

// AnimationState is the playback state set by an AnimationControl command (the `s` key)
type AnimationState int

const (
	StateUnchanged AnimationState = iota
	StateStopped                  // s=1
	StateLoading                  // s=2, run and wait for more frames at the end
	StateRunning                  // s=3, run and loop
)

// LoopForever is the LoopCount that repeats an animation without end
const LoopForever = 0

// Animation is the payload of an AnimationControl command. Build it with
// StopAnimation, LoadAnimation or RunAnimation and refine with the chaining methods.
type Animation struct {
	State        AnimationState
	LoopCount    uint32 // only sent when HasLoops; 0 means forever
	HasLoops     bool
	Frame        uint32 // frame whose gap is changed
	Gap          int32  // gap in milliseconds for Frame, negative for gapless
	CurrentFrame uint32 // frame to make current
}

func StopAnimation() Animation { return Animation{State: StateStopped} }
func LoadAnimation() Animation { return Animation{State: StateLoading} }
func RunAnimation() Animation  { return Animation{State: StateRunning} }

// Loops sets how many times the animation plays; LoopForever repeats it indefinitely
func (a Animation) Loops(n uint32) Animation {
	a.LoopCount = n
	a.HasLoops = true
	return a
}

// FrameGap changes the gap of frame to ms milliseconds
func (a Animation) FrameGap(frame uint32, ms int32) Animation {
	a.Frame = frame
	a.Gap = ms
	return a
}

// Current makes frame the currently displayed frame
func (a Animation) Current(frame uint32) Animation {
	a.CurrentFrame = frame
	return a
}

// FrameParams configures an AnimationFrame command. Zero fields are left to the
// terminal's defaults.
type FrameParams struct {
	EditFrame  uint32 // r, frame to edit instead of appending a new one
	BaseFrame  uint32 // c, frame used as the background
	Gap        int32  // z, gap in milliseconds, negative for gapless
	X, Y       uint32 // x/y, offset of the data inside the frame
	Replace    bool   // X=1, replace pixels instead of alpha blending
	Background uint32 // Y, 32-bit RGBA background color
}

// Composition configures a ComposeFrame command
type Composition struct {
	SourceFrame      uint32 // r
	DestFrame        uint32 // c
	Width, Height    uint32 // w/h, rectangle size in pixels
	DestX, DestY     uint32 // x/y
	SourceX, SourceY uint32 // X/Y
	Replace          bool   // C=1
}
