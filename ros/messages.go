package ros

import (
	"math"
	"time"

	"go.viam.com/navbench/spatialmath"
)

// ROS message type names used by navbench.
const (
	PoseStampedType       = "geometry_msgs/PoseStamped"
	BoolType              = "std_msgs/Bool"
	ClockType             = "rosgraph_msgs/Clock"
	Float32MultiArrayType = "std_msgs/Float32MultiArray"
	SolverStateArrayType  = "robust_fast_navigation/SolverStateArray"
)

// Time is a ROS timestamp.
type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// Seconds returns the timestamp as fractional seconds.
func (t Time) Seconds() float64 {
	return float64(t.Secs) + float64(t.Nsecs)/1e9
}

// TimeFromGo converts a go time to a ROS timestamp.
func TimeFromGo(t time.Time) Time {
	return Time{Secs: t.Unix(), Nsecs: int64(t.Nanosecond())}
}

// TimeFromSeconds converts fractional seconds to a ROS timestamp.
func TimeFromSeconds(secs float64) Time {
	whole := math.Floor(secs)
	return Time{Secs: int64(whole), Nsecs: int64(math.Round((secs - whole) * 1e9))}
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Point is geometry_msgs/Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vector3 is geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// QuaternionFromYaw returns the quaternion for a rotation of yaw radians about z.
func QuaternionFromYaw(yaw float64) Quaternion {
	q := spatialmath.QuatFromYaw(yaw)
	return Quaternion{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
}

// Quat converts to a spatialmath quaternion.
func (q Quaternion) Quat() spatialmath.Quat {
	return spatialmath.Quat{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Pose2D projects the pose onto the x-y plane.
func (p Pose) Pose2D() spatialmath.Pose2D {
	return spatialmath.NewPose2D(p.Position.X, p.Position.Y, p.Orientation.Quat().Yaw())
}

// PoseFrom2D lifts a planar pose into a Pose at z=0.
func PoseFrom2D(p spatialmath.Pose2D) Pose {
	return Pose{
		Position:    Point{X: p.Point.X, Y: p.Point.Y},
		Orientation: QuaternionFromYaw(p.Heading),
	}
}

// PoseStamped is geometry_msgs/PoseStamped.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

// PoseArray is geometry_msgs/PoseArray.
type PoseArray struct {
	Header Header `json:"header"`
	Poses  []Pose `json:"poses"`
}

// Twist is geometry_msgs/Twist.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// JointTrajectoryPoint is trajectory_msgs/JointTrajectoryPoint. The planner uses it to carry the
// initial position, velocity and acceleration of a candidate trajectory.
type JointTrajectoryPoint struct {
	Positions     []float64 `json:"positions"`
	Velocities    []float64 `json:"velocities"`
	Accelerations []float64 `json:"accelerations"`
	Effort        []float64 `json:"effort"`
	TimeFromStart Time      `json:"time_from_start"`
}

// SolverState is one candidate recovery point published by the planner. Polys holds the safe
// corridor polygons flattened into a pose list.
type SolverState struct {
	Polys      PoseArray            `json:"polys"`
	InitialPVA JointTrajectoryPoint `json:"initialPVA"`
}

// SolverStateArray is robust_fast_navigation/SolverStateArray.
type SolverStateArray struct {
	States []SolverState `json:"states"`
}

// MultiArrayDimension is std_msgs/MultiArrayDimension.
type MultiArrayDimension struct {
	Label  string `json:"label"`
	Size   uint32 `json:"size"`
	Stride uint32 `json:"stride"`
}

// MultiArrayLayout is std_msgs/MultiArrayLayout.
type MultiArrayLayout struct {
	Dim        []MultiArrayDimension `json:"dim"`
	DataOffset uint32                `json:"data_offset"`
}

// Float32MultiArray is std_msgs/Float32MultiArray.
type Float32MultiArray struct {
	Layout MultiArrayLayout `json:"layout"`
	Data   []float32        `json:"data"`
}

// Bool is std_msgs/Bool.
type Bool struct {
	Data bool `json:"data"`
}

// Clock is rosgraph_msgs/Clock.
type Clock struct {
	Clock Time `json:"clock"`
}

// ModelState is gazebo_msgs/ModelState.
type ModelState struct {
	ModelName      string `json:"model_name"`
	Pose           Pose   `json:"pose"`
	Twist          Twist  `json:"twist"`
	ReferenceFrame string `json:"reference_frame"`
}
